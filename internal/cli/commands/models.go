package commands

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/relations/internal/cli/ui"
	"github.com/conduit-lang/relations/internal/config"
	"github.com/conduit-lang/relations/internal/orm/record"
	"github.com/conduit-lang/relations/internal/orm/relations"
	"github.com/conduit-lang/relations/internal/orm/schema"
)

// NewModelsCommand creates the models command
func NewModelsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "models [model]",
		Short: "List declared models or describe one",
		Long: `Without arguments, list every declared model with its engine, key and
relation count. With a model name ("Name" or "engine.Name"), show its
attributes, key descriptor and relation fields.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Load(); err != nil {
				fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), app.NoColor))
				return err
			}
			if len(args) == 0 {
				return listModels(cmd, app)
			}
			def, err := app.definition(cmd, args[0])
			if err != nil {
				return err
			}
			return describeModel(cmd, app, def)
		},
	}
}

func listModels(cmd *cobra.Command, app *App) error {
	out := cmd.OutOrStdout()
	table := ui.NewTable(out, []string{"Engine", "Model", "Key", "Relations"}, &ui.TableOptions{NoColor: app.NoColor})

	for _, engine := range app.Schema.Engines() {
		defs := app.Schema.Definitions[engine]
		names := make([]string, 0, len(defs))
		for name := range defs {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			def := defs[name]
			key := "(none)"
			if kd, err := schema.BuildKeyDescriptor(def.Model()); err == nil {
				key = strings.Join(kd.Names(), ", ")
			}
			table.AddRow(engine, name, key, strconv.Itoa(len(def.Columns())))
		}
	}
	table.Render()
	return nil
}

func describeModel(cmd *cobra.Command, app *App, def *record.Definition) error {
	out := cmd.OutOrStdout()
	model := def.Model()

	kv := ui.NewKeyValueTable(out, app.NoColor)
	kv.AddRow("Model", model.Name)
	kv.AddRow("Engine", model.Engine)
	kv.AddRow("Table", model.TableName)
	if kd, err := schema.BuildKeyDescriptor(model); err == nil {
		kv.AddRow("Key", kd.String())
	} else {
		kv.AddRow("Key", "(none)")
	}
	kv.Render()
	fmt.Fprintln(out)

	fields := ui.NewTable(out, []string{"Attribute", "Type", "Role"}, &ui.TableOptions{NoColor: app.NoColor})
	for _, f := range model.Fields {
		fields.AddRow(f.Name, f.Type.String(), f.Key.String())
	}
	fields.Render()

	cols := def.Columns()
	if len(cols) == 0 {
		return nil
	}
	fmt.Fprintln(out)

	rels := ui.NewTable(out, []string{"Relation", "Kind", "Target", "Required", "Indexed"}, &ui.TableOptions{NoColor: app.NoColor})
	for _, col := range cols {
		target := col.Target().Engine() + "." + col.Target().Name()
		opts := col.Options()
		rels.AddRow(col.Name(), col.Variant().String(), target, yesNo(opts.Required), yesNo(opts.Indexed))
	}
	rels.Render()
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// modelNames lists every declared model as "engine.Name"
func (a *App) modelNames() []string {
	var names []string
	for engine, defs := range a.Schema.Definitions {
		for name := range defs {
			names = append(names, engine+"."+name)
		}
	}
	sort.Strings(names)
	return names
}

// definition looks a model up and prints suggestions when it is unknown
func (a *App) definition(cmd *cobra.Command, ref string) (*record.Definition, error) {
	def, err := a.Schema.Definition(ref)
	if err != nil {
		if errors.Is(err, config.ErrUnknownModel) {
			fmt.Fprint(cmd.ErrOrStderr(), ui.ModelNotFoundError(ref, ui.FindSimilar(ref, a.modelNames(), nil), a.NoColor))
		}
		return nil, err
	}
	return def, nil
}

// relation looks a relation column up and prints suggestions when the model
// or the relation is unknown
func (a *App) relation(cmd *cobra.Command, modelRef, name string) (*record.Definition, relations.Column, error) {
	def, err := a.definition(cmd, modelRef)
	if err != nil {
		return nil, nil, err
	}
	col, ok := def.Column(name)
	if !ok {
		var names []string
		for _, c := range def.Columns() {
			names = append(names, c.Name())
		}
		fmt.Fprint(cmd.ErrOrStderr(), ui.RelationNotFoundError(def.Name(), name, ui.FindSimilar(name, names, nil), a.NoColor))
		return nil, nil, fmt.Errorf("%w: %s.%s", config.ErrUnknownRelation, def.Name(), name)
	}
	return def, col, nil
}
