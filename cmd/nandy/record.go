package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fentz26/nandy/internal/models"
	"github.com/spf13/cobra"
)

// recordOptions holds the flags of one record kind's commands.
type recordOptions struct {
	kind     models.Kind
	plural   string
	template string
	file     string
	text     string
	person   string
	personID string
	email    string
	status   string
	name     string
}

var routineCmd = newRecordCmd(models.KindRoutine, "routines", "Manage routines", `Routines are guided activities: an ordered task list worked through
one active task at a time.`, "remind", "pause", "unpause", "skip", "unskip", "complete", "uncomplete", "expire", "unexpire", "next")

var todoCmd = newRecordCmd(models.KindToDo, "todos", "Manage todos", `ToDos are standalone reminders. Completing one can right an area or
record an act.`, "remind", "pause", "unpause", "skip", "unskip", "complete", "uncomplete", "expire", "unexpire")

var actCmd = newRecordCmd(models.KindAct, "acts", "Manage acts", `Acts record a good (positive) or bad (negative) deed. A negative act
can create a todo to make up for it.`, "right", "wrong")

var areaCmd = newRecordCmd(models.KindArea, "areas", "Manage areas", `Areas are right-or-wrong checkpoints, such as a tidy room. An area
going wrong can create a todo to put it right.`, "right", "wrong")

func init() {
	routineCmd.AddCommand(routineTaskCmd)
	todoCmd.AddCommand(todoRemindCmd)
	todoRemindCmd.Flags().StringVar(&remindPerson, "person", "", "Person name")
	todoRemindCmd.Flags().StringVar(&remindPersonID, "person-id", "", "Person ID")
}

func newRecordCmd(kind models.Kind, plural, short, long string, actions ...string) *cobra.Command {
	o := &recordOptions{kind: kind, plural: plural}
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: short,
		Long:  long,
	}

	add := &cobra.Command{
		Use:   "add [name]",
		Short: fmt.Sprintf("Create a %s", kind),
		Args:  cobra.MaximumNArgs(1),
		RunE:  o.runAdd,
	}
	add.Flags().StringVarP(&o.template, "template", "t", "", "Template ID to build from")
	add.Flags().StringVarP(&o.file, "file", "f", "", "YAML file with data merged over the template")
	add.Flags().StringVar(&o.text, "text", "", "Text to speak or show")
	add.Flags().StringVar(&o.person, "person", "", "Owner by name")
	add.Flags().StringVar(&o.personID, "person-id", "", "Owner by ID")
	add.Flags().StringVar(&o.email, "email", "", "Owner by email")
	add.Flags().StringVar(&o.status, "status", "", "Initial status")

	list := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s", plural),
		RunE:  o.runList,
	}
	list.Flags().StringVar(&o.personID, "person-id", "", "Filter by person ID")
	list.Flags().StringVar(&o.status, "status", "", "Filter by status")
	list.Flags().StringVar(&o.name, "name", "", "Filter by name")

	show := &cobra.Command{
		Use:   "show [id]",
		Short: fmt.Sprintf("Show a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE:  o.runShow,
	}

	set := &cobra.Command{
		Use:   "set [id]",
		Short: fmt.Sprintf("Change a %s without running its lifecycle", kind),
		Args:  cobra.ExactArgs(1),
		RunE:  o.runSet,
	}
	set.Flags().StringVar(&o.name, "name", "", "New name")
	set.Flags().StringVar(&o.status, "status", "", "New status")
	set.Flags().StringVarP(&o.file, "file", "f", "", "YAML file replacing the data")

	rm := &cobra.Command{
		Use:   "rm [id]",
		Short: fmt.Sprintf("Remove a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE:  o.runRm,
	}

	history := &cobra.Command{
		Use:   "history [id]",
		Short: fmt.Sprintf("Show the decision trail of a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE:  runHistory(plural),
	}

	cmd.AddCommand(add, list, show, set, rm, history)
	for _, action := range actions {
		cmd.AddCommand(&cobra.Command{
			Use:   action + " [id]",
			Short: fmt.Sprintf("Apply %s to a %s", action, kind),
			Args:  cobra.ExactArgs(1),
			RunE:  o.runAction(action),
		})
	}
	return cmd
}

func (o *recordOptions) runAdd(cmd *cobra.Command, args []string) error {
	doc, err := readYAML(o.file)
	if err != nil {
		return err
	}
	in := map[string]any{}
	if len(args) == 1 {
		in["name"] = args[0]
	}
	if o.template != "" {
		in["template_id"] = o.template
	}
	if doc != "" {
		in["yaml"] = doc
	}
	if o.personID != "" {
		in["person_id"] = o.personID
	}
	if o.email != "" {
		in["email"] = o.email
	}
	if o.status != "" {
		in["status"] = o.status
	}
	data := map[string]any{}
	if o.text != "" {
		data["text"] = o.text
	}
	if o.person != "" {
		data["person"] = o.person
	}
	if len(data) > 0 {
		if doc != "" {
			return fmt.Errorf("--text and --person cannot be combined with --file")
		}
		in["data"] = data
	}

	resp, err := apiPost("/"+o.plural, map[string]any{string(o.kind): in})
	if err != nil {
		return err
	}
	rec, err := decodeRecord(resp, o.kind)
	if err != nil {
		return err
	}
	fmt.Printf("Created %s: %s (%s)\n", o.kind, rec.ID, rec.Status)
	return nil
}

func (o *recordOptions) runList(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if o.personID != "" {
		q.Set("person_id", o.personID)
	}
	if o.status != "" {
		q.Set("status", o.status)
	}
	if o.name != "" {
		q.Set("name", o.name)
	}
	path := "/" + o.plural
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var result map[string][]models.Record
	if err := apiGetInto(path, &result); err != nil {
		return err
	}
	records := result[o.plural]
	if len(records) == 0 {
		fmt.Printf("No %s found\n", o.plural)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSTATE\tUPDATED")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID), truncate(r.Name, 40), r.Status, stateOf(&r), formatEpoch(r.Updated))
	}
	w.Flush()
	return nil
}

func (o *recordOptions) runShow(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/" + o.plural + "/" + args[0])
	if err != nil {
		return err
	}
	var result map[string]struct {
		models.Record
		YAML string `json:"yaml"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}
	r := result[string(o.kind)]

	fmt.Printf("ID:      %s\n", r.ID)
	fmt.Printf("Name:    %s\n", r.Name)
	fmt.Printf("Person:  %s\n", r.PersonID)
	fmt.Printf("Status:  %s\n", r.Status)
	fmt.Printf("Created: %s\n", formatEpoch(r.Created))
	fmt.Printf("Updated: %s\n", formatEpoch(r.Updated))
	if o.kind == models.KindRoutine && len(r.Data.Tasks) > 0 {
		fmt.Println("Tasks:")
		for i, t := range r.Data.Tasks {
			fmt.Printf("  %d. [%s] %s\n", i, taskStateOf(&t.Flags), t.Text)
		}
	}
	fmt.Println("---")
	fmt.Print(r.YAML)
	return nil
}

func (o *recordOptions) runSet(cmd *cobra.Command, args []string) error {
	patch := map[string]any{}
	if cmd.Flags().Changed("name") {
		patch["name"] = o.name
	}
	if cmd.Flags().Changed("status") {
		patch["status"] = o.status
	}
	if o.file != "" {
		doc, err := readYAML(o.file)
		if err != nil {
			return err
		}
		patch["yaml"] = doc
	}
	if len(patch) == 0 {
		return fmt.Errorf("nothing to change, pass --name, --status or --file")
	}
	if _, err := apiPatch("/"+o.plural+"/"+args[0], map[string]any{string(o.kind): patch}); err != nil {
		return err
	}
	fmt.Printf("Updated %s %s\n", o.kind, args[0])
	return nil
}

func (o *recordOptions) runRm(cmd *cobra.Command, args []string) error {
	if _, err := apiDelete("/" + o.plural + "/" + args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed %s %s\n", o.kind, args[0])
	return nil
}

func (o *recordOptions) runAction(action string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		resp, err := apiPatch("/"+o.plural+"/"+args[0]+"/"+action, nil)
		if err != nil {
			return err
		}
		return printUpdated(resp, fmt.Sprintf("%s %s", action, o.kind))
	}
}

func runHistory(plural string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var result struct {
			History []models.PDREntry `json:"history"`
		}
		if err := apiGetInto("/"+plural+"/"+args[0]+"/history", &result); err != nil {
			return err
		}
		if len(result.History) == 0 {
			fmt.Println("No history recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tKIND\tACTION\tOUTCOME\tDETAILS")
		for _, e := range result.History {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Local().Format(time.DateTime), e.Kind, e.Action, e.Outcome, truncate(e.Details, 60))
		}
		w.Flush()
		return nil
	}
}

// --- Routine tasks and todo reminders ---

var routineTaskCmd = &cobra.Command{
	Use:   "task [routine-id] [task] [action]",
	Short: "Apply an action to one task of a routine",
	Long: `Applies remind, pause, unpause, skip, unskip, complete or uncomplete to
the task at the given position (0-based) of a routine's task list.`,
	Args: cobra.ExactArgs(3),
	RunE: runRoutineTask,
}

var todoRemindCmd = &cobra.Command{
	Use:   "remind-all",
	Short: "Send one reminder covering all of a person's open todos",
	RunE:  runToDoRemind,
}

var (
	remindPerson   string
	remindPersonID string
)

func runRoutineTask(cmd *cobra.Command, args []string) error {
	path := "/routines/" + args[0] + "/tasks/" + args[1] + "/" + args[2]
	resp, err := apiPatch(path, nil)
	if err != nil {
		return err
	}
	return printUpdated(resp, fmt.Sprintf("%s task %s", args[2], args[1]))
}

func runToDoRemind(cmd *cobra.Command, args []string) error {
	body := map[string]string{}
	if remindPerson != "" {
		body["person"] = remindPerson
	}
	if remindPersonID != "" {
		body["person_id"] = remindPersonID
	}
	resp, err := apiPatch("/todos/remind", body)
	if err != nil {
		return err
	}
	return printUpdated(resp, "remind todos")
}

// --- Helpers ---

func decodeRecord(resp []byte, kind models.Kind) (*models.Record, error) {
	var result map[string]models.Record
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}
	rec, ok := result[string(kind)]
	if !ok {
		return nil, fmt.Errorf("response has no %s", kind)
	}
	return &rec, nil
}

// stateOf summarizes the lifecycle flags of a record.
func stateOf(r *models.Record) string {
	var parts []string
	if r.Data.IsPaused() {
		parts = append(parts, "paused")
	}
	if r.Data.IsSkipped() {
		parts = append(parts, "skipped")
	}
	if r.Data.IsExpired() {
		parts = append(parts, "expired")
	}
	if r.Data.Tasks != nil {
		done := 0
		for i := range r.Data.Tasks {
			if r.Data.Tasks[i].Done() {
				done++
			}
		}
		parts = append(parts, fmt.Sprintf("%d/%d tasks", done, len(r.Data.Tasks)))
	}
	return strings.Join(parts, ",")
}

func taskStateOf(f *models.Flags) string {
	switch {
	case f.Done() && f.IsSkipped():
		return "skipped"
	case f.Done():
		return "done"
	case f.Active() && f.IsPaused():
		return "paused"
	case f.Active():
		return "active"
	}
	return "pending"
}

func formatEpoch(ts float64) string {
	if ts == 0 {
		return ""
	}
	sec := int64(ts)
	return time.Unix(sec, int64((ts-float64(sec))*1e9)).Local().Format(time.DateTime)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
