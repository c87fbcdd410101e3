package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/fentz26/nandy/internal/models"
	"github.com/spf13/cobra"
)

var personCmd = &cobra.Command{
	Use:   "person",
	Short: "Manage persons",
}

var personAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a person",
	Args:  cobra.ExactArgs(1),
	RunE:  runPersonAdd,
}

var personListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persons",
	RunE:  runPersonList,
}

var personSetCmd = &cobra.Command{
	Use:   "set [person-id]",
	Short: "Change a person's name or email",
	Args:  cobra.ExactArgs(1),
	RunE:  runPersonSet,
}

var personRmCmd = &cobra.Command{
	Use:   "rm [person-id]",
	Short: "Remove a person",
	Args:  cobra.ExactArgs(1),
	RunE:  runPersonRm,
}

var (
	personName  string
	personEmail string
)

func init() {
	personCmd.AddCommand(personAddCmd, personListCmd, personSetCmd, personRmCmd)

	personAddCmd.Flags().StringVar(&personEmail, "email", "", "Email address")
	personListCmd.Flags().StringVar(&personName, "name", "", "Only persons with this name")
	personSetCmd.Flags().StringVar(&personName, "name", "", "New name")
	personSetCmd.Flags().StringVar(&personEmail, "email", "", "New email")
}

func runPersonAdd(cmd *cobra.Command, args []string) error {
	body := map[string]any{"person": models.Person{Name: args[0], Email: personEmail}}
	resp, err := apiPost("/persons", body)
	if err != nil {
		return err
	}

	var result struct {
		Person models.Person `json:"person"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}
	fmt.Printf("Created person: %s\n", result.Person.ID)
	return nil
}

func runPersonList(cmd *cobra.Command, args []string) error {
	path := "/persons"
	if personName != "" {
		path += "?name=" + url.QueryEscape(personName)
	}
	var result struct {
		Persons []models.Person `json:"persons"`
	}
	if err := apiGetInto(path, &result); err != nil {
		return err
	}

	if len(result.Persons) == 0 {
		fmt.Println("No persons found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL")
	for _, p := range result.Persons {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, p.Email)
	}
	w.Flush()
	return nil
}

func runPersonSet(cmd *cobra.Command, args []string) error {
	patch := map[string]string{}
	if cmd.Flags().Changed("name") {
		patch["name"] = personName
	}
	if cmd.Flags().Changed("email") {
		patch["email"] = personEmail
	}
	if len(patch) == 0 {
		return fmt.Errorf("nothing to change, pass --name or --email")
	}
	if _, err := apiPatch("/persons/"+args[0], map[string]any{"person": patch}); err != nil {
		return err
	}
	fmt.Printf("Updated person %s\n", args[0])
	return nil
}

func runPersonRm(cmd *cobra.Command, args []string) error {
	if _, err := apiDelete("/persons/" + args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed person %s\n", args[0])
	return nil
}
