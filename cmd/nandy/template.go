package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage templates",
	Long: `Templates are named payloads that seed new routines, todos, acts and
areas. Their data is written as YAML.`,
}

var templateAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a template from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateAdd,
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates",
	RunE:  runTemplateList,
}

var templateShowCmd = &cobra.Command{
	Use:   "show [template-id]",
	Short: "Show a template's data",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateShow,
}

var templateSetCmd = &cobra.Command{
	Use:   "set [template-id]",
	Short: "Replace a template's data from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateSet,
}

var templateRmCmd = &cobra.Command{
	Use:   "rm [template-id]",
	Short: "Remove a template",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateRm,
}

var (
	templateKind string
	templateFile string
)

func init() {
	templateCmd.AddCommand(templateAddCmd, templateListCmd, templateShowCmd, templateSetCmd, templateRmCmd)

	templateAddCmd.Flags().StringVar(&templateKind, "kind", "", "Kind: routine, todo, act or area (required)")
	templateAddCmd.Flags().StringVarP(&templateFile, "file", "f", "", "YAML file with the template data")
	templateAddCmd.MarkFlagRequired("kind")

	templateListCmd.Flags().StringVar(&templateKind, "kind", "", "Filter by kind")

	templateSetCmd.Flags().StringVarP(&templateFile, "file", "f", "", "YAML file with the template data (required)")
	templateSetCmd.MarkFlagRequired("file")
}

// readYAML returns the contents of path, or "" when path is empty.
func readYAML(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func runTemplateAdd(cmd *cobra.Command, args []string) error {
	doc, err := readYAML(templateFile)
	if err != nil {
		return err
	}
	body := map[string]any{"template": map[string]any{
		"name": args[0],
		"kind": templateKind,
		"yaml": doc,
	}}
	resp, err := apiPost("/templates", body)
	if err != nil {
		return err
	}

	var result struct {
		Template struct {
			ID string `json:"id"`
		} `json:"template"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}
	fmt.Printf("Created template: %s\n", result.Template.ID)
	return nil
}

func runTemplateList(cmd *cobra.Command, args []string) error {
	path := "/templates"
	if templateKind != "" {
		path += "?kind=" + templateKind
	}
	var result struct {
		Templates []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Kind string `json:"kind"`
		} `json:"templates"`
	}
	if err := apiGetInto(path, &result); err != nil {
		return err
	}

	if len(result.Templates) == 0 {
		fmt.Println("No templates found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND")
	for _, t := range result.Templates {
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Name, t.Kind)
	}
	w.Flush()
	return nil
}

func runTemplateShow(cmd *cobra.Command, args []string) error {
	var result struct {
		Template struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Kind string `json:"kind"`
			YAML string `json:"yaml"`
		} `json:"template"`
	}
	if err := apiGetInto("/templates/"+args[0], &result); err != nil {
		return err
	}

	t := result.Template
	fmt.Printf("ID:   %s\n", t.ID)
	fmt.Printf("Name: %s\n", t.Name)
	fmt.Printf("Kind: %s\n", t.Kind)
	fmt.Println("---")
	fmt.Print(t.YAML)
	return nil
}

func runTemplateSet(cmd *cobra.Command, args []string) error {
	doc, err := readYAML(templateFile)
	if err != nil {
		return err
	}
	if _, err := apiPatch("/templates/"+args[0], map[string]any{"template": map[string]any{"yaml": doc}}); err != nil {
		return err
	}
	fmt.Printf("Updated template %s\n", args[0])
	return nil
}

func runTemplateRm(cmd *cobra.Command, args []string) error {
	if _, err := apiDelete("/templates/" + args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed template %s\n", args[0])
	return nil
}
