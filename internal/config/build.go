package config

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/conduit-lang/relations/internal/orm/record"
	"github.com/conduit-lang/relations/internal/orm/relations"
	"github.com/conduit-lang/relations/internal/orm/schema"
	"github.com/conduit-lang/relations/internal/orm/store"
)

var (
	// ErrUnknownModel is returned when a name matches no declared model
	ErrUnknownModel = errors.New("unknown model")

	// ErrAmbiguousModel is returned when a bare model name is declared in
	// more than one engine
	ErrAmbiguousModel = errors.New("ambiguous model name")

	// ErrUnknownRelation is returned when a model carries no such relation
	ErrUnknownRelation = errors.New("unknown relation")
)

// Schema is the declared world: one registry per engine and the record
// definitions of every model, indexed by engine then model name.
type Schema struct {
	Catalog     *schema.Catalog
	Definitions map[string]store.Definitions
}

// Build registers every configured model and declares every relation
// column. All targets are resolved before returning, so a relation to an
// undeclared model fails here rather than on first use. cfg is validated
// and defaulted first, so a Config assembled in code is held to the same
// rules as one read by Load.
func Build(cfg *Config, logger *zap.Logger) (*Schema, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	s := &Schema{
		Catalog:     schema.NewCatalog(logger),
		Definitions: make(map[string]store.Definitions),
	}
	for name := range cfg.engineNames() {
		s.Catalog.Engine(name)
		s.Definitions[name] = store.Definitions{}
	}

	models := make(map[string]*schema.Model)
	for _, mc := range cfg.Models {
		m, err := buildModel(mc)
		if err != nil {
			return nil, err
		}
		if err := s.Catalog.Register(m); err != nil {
			return nil, err
		}
		models[m.Engine+"."+m.Name] = m
	}

	columns := make(map[*schema.Model][]relations.Column)
	var order []*schema.Model
	for _, rc := range cfg.Relations {
		owner, err := s.findModel(models, rc.Model)
		if err != nil {
			return nil, fmt.Errorf("relation %s.%s: %w", rc.Model, rc.Name, err)
		}
		col, err := buildColumn(s.Catalog, owner, rc, logger)
		if err != nil {
			return nil, err
		}
		if _, seen := columns[owner]; !seen {
			order = append(order, owner)
		}
		columns[owner] = append(columns[owner], col)
	}

	for _, m := range models {
		def, err := record.NewDefinition(m, columns[m]...)
		if err != nil {
			return nil, err
		}
		s.Definitions[m.Engine][m.Name] = def
	}

	for _, owner := range order {
		for _, col := range columns[owner] {
			model, kd, err := col.Target().Resolve()
			if err != nil {
				return nil, fmt.Errorf("relation %s.%s: %w", owner.Name, col.Name(), err)
			}
			logger.Debug("relation declared",
				zap.String("model", owner.Name),
				zap.String("relation", col.Name()),
				zap.Stringer("kind", col.Variant()),
				zap.String("target", model.Engine+"."+model.Name),
				zap.Stringer("key", kd))
		}
	}

	return s, nil
}

func buildModel(mc ModelConfig) (*schema.Model, error) {
	m := schema.NewModel(mc.Name, mc.Engine)
	if mc.Table != "" {
		m.TableName = mc.Table
	}
	for _, fc := range mc.Fields {
		typ, err := schema.ParsePrimitiveType(fc.Type)
		if err != nil {
			return nil, fmt.Errorf("model %s.%s: %w", mc.Name, fc.Name, err)
		}
		role, err := schema.ParseKeyRole(fc.Key)
		if err != nil {
			return nil, fmt.Errorf("model %s.%s: %w", mc.Name, fc.Name, err)
		}
		m.AddField(fc.Name, typ, role)
	}
	return m, nil
}

func buildColumn(catalog *schema.Catalog, owner *schema.Model, rc RelationConfig, logger *zap.Logger) (relations.Column, error) {
	variant, err := relations.ParseVariant(rc.Kind)
	if err != nil {
		return nil, fmt.Errorf("relation %s.%s: %w", rc.Model, rc.Name, err)
	}

	engine := rc.TargetEngine
	if engine == "" {
		if variant == relations.VariantCrossStore {
			return nil, fmt.Errorf("relation %s.%s: cross-store relation requires target_engine", rc.Model, rc.Name)
		}
		engine = owner.Engine
	}

	target := relations.TargetName(catalog.Engine(engine), rc.Target, relations.WithTargetLogger(logger))
	opts := relations.Options{Required: rc.Required, Indexed: rc.Indexed}

	switch variant {
	case relations.VariantComposite:
		return relations.NewComposite(rc.Name, target, opts)
	case relations.VariantCrossStore:
		return relations.NewCrossStore(rc.Name, target, opts)
	default:
		return relations.NewScalar(rc.Name, target, opts)
	}
}

// findModel looks a model up by "engine.Name" or by bare name
func (s *Schema) findModel(models map[string]*schema.Model, ref string) (*schema.Model, error) {
	if m, ok := models[ref]; ok {
		return m, nil
	}
	var found *schema.Model
	for _, m := range models {
		if m.Name != ref {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %s", ErrAmbiguousModel, ref)
		}
		found = m
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, ref)
	}
	return found, nil
}

// Definition returns the definition of a model, named "engine.Name" or by
// bare name when that is unambiguous
func (s *Schema) Definition(ref string) (*record.Definition, error) {
	models := make(map[string]*schema.Model)
	for engine, defs := range s.Definitions {
		for name, def := range defs {
			models[engine+"."+name] = def.Model()
		}
	}
	m, err := s.findModel(models, ref)
	if err != nil {
		return nil, err
	}
	return s.Definitions[m.Engine][m.Name], nil
}

// Relation returns a relation column of a model
func (s *Schema) Relation(modelRef, name string) (*record.Definition, relations.Column, error) {
	def, err := s.Definition(modelRef)
	if err != nil {
		return nil, nil, err
	}
	col, ok := def.Column(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s.%s", ErrUnknownRelation, def.Name(), name)
	}
	return def, col, nil
}

// Engines returns engine names in sorted order
func (s *Schema) Engines() []string {
	names := make([]string, 0, len(s.Definitions))
	for name := range s.Definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
