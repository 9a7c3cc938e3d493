package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/relations/internal/cli/ui"
	"github.com/conduit-lang/relations/internal/config"
	"github.com/conduit-lang/relations/internal/orm/relations"
	"github.com/conduit-lang/relations/internal/orm/schema"
	"github.com/conduit-lang/relations/internal/orm/store"
)

// NewEncodeCommand creates the encode command
func NewEncodeCommand(app *App) *cobra.Command {
	var keyJSON string

	cmd := &cobra.Command{
		Use:   "encode <model> <relation> [value | name=value...]",
		Short: "Encode a relation value to its stored form",
		Long: `Encode a relation value the way it is written to storage and print the
stored form as JSON.

The value is either a single scalar key, name=value pairs naming the key
attributes of the target, or a JSON object given with --key. Without a
value, null is encoded.`,
		Example: `  relcol encode Linking user 6ba7b810-9dad-11d1-80b4-00c04fd430c8
  relcol encode Linking dummy organization=Org1 start_date=1709633472345 key=6ba7b810-9dad-11d1-80b4-00c04fd430c8
  relcol encode Linking dummy --key '{"organization":"Org1","start_date":"2024-03-05T10:11:12.345Z","key":"6ba7b810-9dad-11d1-80b4-00c04fd430c8"}'`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Load(); err != nil {
				fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), app.NoColor))
				return err
			}
			_, col, err := app.relation(cmd, args[0], args[1])
			if err != nil {
				return err
			}

			key, scalar, err := parseInput(args[2:], keyJSON)
			if err != nil {
				return err
			}
			v, err := relations.FromInput(col, key, scalar)
			if err != nil {
				return err
			}
			stored, err := col.ToStorage(v)
			if err != nil {
				return err
			}

			b, err := json.Marshal(stored)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}

	cmd.Flags().StringVar(&keyJSON, "key", "", "key mapping as a JSON object")
	return cmd
}

// parseInput reads the encode arguments: a bare scalar, name=value pairs in
// order, or a JSON object
func parseInput(args []string, keyJSON string) (*schema.KeyMapping, interface{}, error) {
	if keyJSON != "" {
		if len(args) > 0 {
			return nil, nil, fmt.Errorf("--key cannot be combined with positional values")
		}
		var km schema.KeyMapping
		if err := json.Unmarshal([]byte(keyJSON), &km); err != nil {
			return nil, nil, fmt.Errorf("invalid --key: %w", err)
		}
		return &km, nil, nil
	}

	if len(args) == 0 {
		return nil, nil, nil
	}
	if len(args) == 1 && !strings.Contains(args[0], "=") {
		return nil, args[0], nil
	}

	var km schema.KeyMapping
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("expected name=value, got %q", arg)
		}
		if km.Has(name) {
			return nil, nil, fmt.Errorf("key attribute %s given twice", name)
		}
		km.Set(name, value)
	}
	return &km, nil, nil
}

// NewDecodeCommand creates the decode command
func NewDecodeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <model> <relation> [stored]",
		Short: "Decode a stored relation value",
		Long: `Decode a stored relation value back to its key. Composite relations take
the stored JSON mapping; scalar relations take the stored key text. A
missing or empty stored value decodes to null.`,
		Example: `  relcol decode Linking dummy '{"organization":"Org1","start_date":"1709633472345","key":"6ba7b810-9dad-11d1-80b4-00c04fd430c8"}'`,
		Args:    cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Load(); err != nil {
				fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), app.NoColor))
				return err
			}
			_, col, err := app.relation(cmd, args[0], args[1])
			if err != nil {
				return err
			}

			v, err := col.ToRuntime(storedArg(args[2:]))
			if err != nil {
				return err
			}
			return printValue(cmd.OutOrStdout(), app, col, v)
		},
	}
}

// storedArg turns the command-line stored form into what the codecs read
func storedArg(args []string) interface{} {
	if len(args) == 0 || args[0] == "" {
		return nil
	}
	return args[0]
}

func printValue(w io.Writer, app *App, col relations.Column, v relations.Value) error {
	switch v.Kind() {
	case relations.KindNull:
		fmt.Fprintln(w, "null")

	case relations.KindScalar:
		kd, err := col.KeyDescriptor()
		if err != nil {
			return err
		}
		kv := ui.NewKeyValueTable(w, app.NoColor)
		kv.AddRow(kd.Attributes[0].Name, formatValue(v.Scalar()))
		kv.Render()

	case relations.KindKey:
		kd, err := col.KeyDescriptor()
		if err != nil {
			return err
		}
		table := ui.NewTable(w, []string{"Attribute", "Type", "Value"}, &ui.TableOptions{NoColor: app.NoColor})
		for _, attr := range kd.Attributes {
			val, _ := v.Key().Get(attr.Name)
			table.AddRow(attr.Name, attr.Type.String(), formatValue(val))
		}
		table.Render()

	default:
		fmt.Fprintln(w, v.String())
	}
	return nil
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

// NewGetCommand creates the get command
func NewGetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <model> <relation> <stored>",
		Short: "Follow a stored relation value to its target record",
		Long: `Decode a stored relation value, load the record it points to from the
target model's engine and print it.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Load(); err != nil {
				fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), app.NoColor))
				return err
			}
			_, col, err := app.relation(cmd, args[0], args[1])
			if err != nil {
				return err
			}

			v, err := col.ToRuntime(storedArg(args[2:]))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			stores, err := config.OpenStores(ctx, app.Config, app.Schema, app.Logger)
			if err != nil {
				return err
			}
			defer stores.Close()

			rec, err := store.Follow(ctx, stores.Set, col, v)
			if err != nil {
				return err
			}
			row, err := rec.Encode()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			kv := ui.NewKeyValueTable(out, app.NoColor)
			kv.AddRow("model", rec.Engine()+"."+rec.ModelName())
			for _, name := range rec.Definition().StorageColumns() {
				kv.AddRow(name, formatValue(row[name]))
			}
			kv.Render()
			return nil
		},
	}
}
