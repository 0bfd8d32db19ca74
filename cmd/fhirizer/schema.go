package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bmeg/fhirizer/internal/config"
	"github.com/bmeg/fhirizer/internal/domain/sources"
	"github.com/bmeg/fhirizer/internal/platform/mapping"
)

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect and edit the field mapping schema",
	}
	cmd.PersistentFlags().String("schema", "", "Field mapping schema (YAML or JSON)")

	// schema find
	findCmd := &cobra.Command{
		Use:   "find",
		Short: "Print the map for a source or destination field",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openSchema(cmd)
			if err != nil {
				return err
			}
			src, _ := cmd.Flags().GetString("source-field")
			dst, _ := cmd.Flags().GetString("destination-field")
			return findMap(cmd.OutOrStdout(), s, src, dst)
		},
	}
	findCmd.Flags().String("source-field", "", "Source field name, e.g. case.demographic.gender")
	findCmd.Flags().String("destination-field", "", "Destination field name, e.g. Patient.gender")
	cmd.AddCommand(findCmd)

	// schema check
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the schema declares every field a source reads",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, s, err := openSchema(cmd)
			if err != nil {
				return err
			}
			return checkSchema(cmd.OutOrStdout(), s, cfg.Source)
		},
	}
	addSourceFlag(checkCmd)
	cmd.AddCommand(checkCmd)

	// schema set
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Update a map's source or destination attributes and rewrite the schema file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, s, err := openSchema(cmd)
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("source-field")
			srcVals, _ := cmd.Flags().GetStringToString("source-value")
			dstVals, _ := cmd.Flags().GetStringToString("destination-value")
			if err := s.UpdateValues(name, toAny(srcVals), toAny(dstVals)); err != nil {
				return err
			}
			data, err := mapping.Marshal(s)
			if err != nil {
				return err
			}
			return os.WriteFile(cfg.SchemaPath, data, 0o644)
		},
	}
	setCmd.Flags().String("source-field", "", "Source field name of the map to update")
	setCmd.Flags().StringToString("source-value", nil, "Source attributes to set, key=value")
	setCmd.Flags().StringToString("destination-value", nil, "Destination attributes to set, key=value")
	cmd.AddCommand(setCmd)

	return cmd
}

func openSchema(cmd *cobra.Command) (*config.Config, *mapping.Schema, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if cfg.SchemaPath == "" {
		return nil, nil, fmt.Errorf("--schema or SCHEMA_PATH is required")
	}
	s, err := mapping.LoadFile(cfg.SchemaPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, s, nil
}

func findMap(w io.Writer, s *mapping.Schema, source, destination string) error {
	var (
		m  mapping.Map
		ok bool
	)
	switch {
	case source != "":
		m, ok = s.FindBySource(source)
	case destination != "":
		m, ok = s.FindByDestination(destination)
	default:
		return fmt.Errorf("--source-field or --destination-field is required")
	}
	if !ok {
		return fmt.Errorf("no map for %s%s", source, destination)
	}
	data, err := mapping.MarshalMap(m)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func checkSchema(w io.Writer, s *mapping.Schema, sourceName string) error {
	src, err := sources.Lookup(sourceName)
	if err != nil {
		return err
	}
	err = s.Require(src.Fields()...)
	var missing *mapping.MissingFieldsError
	if errors.As(err, &missing) {
		for _, f := range missing.Fields {
			fmt.Fprintln(w, f)
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "schema declares all %d fields read by %s\n", len(src.Fields()), src.Name)
	return nil
}

func toAny(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
