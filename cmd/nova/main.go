package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"novadream/internal/app"
	"novadream/internal/blob"
	"novadream/internal/config"
	"novadream/internal/db"
	"novadream/internal/directive"
	"novadream/internal/engine"
	"novadream/internal/llm"
	"novadream/internal/migrate"
	"novadream/internal/reconcile"
	"novadream/internal/repo"
	"novadream/internal/roadmap"
	"novadream/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "nova",
	Short: "Nova Dream OS CLI",
	Long: `Nova Dream OS tracks your projects, missions, tasks, finances and notes,
with an assistant that proposes actions you confirm before anything runs.
- Workspace: the .novadream directory holding the database and blob store.
- Projects group missions; missions are roadmap steps ordered by index.
- Roadmap import matches proposed missions against stored ones by title
  similarity, shows a create/update/identical preview and applies on demand.
- Assistant replies may carry action cards (create task, add revenue,
  create project); each card runs exactly once after you confirm it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("NOVA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("owner-id", "", "owner identifier (defaults to config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("owner-id", rootCmd.PersistentFlags().Lookup("owner-id"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(missionCmd())
	rootCmd.AddCommand(roadmapCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(financeCmd())
	rootCmd.AddCommand(noteCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default nova.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := app.ResolveOwnerAndConfig(viper.GetString("workspace"), viper.GetString("owner-id"))
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	})
	return cfg
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectDeleteCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var title, segment, description, deadline string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
					OwnerID:     owner,
					Title:       title,
					Segment:     segment,
					Description: description,
					Deadline:    deadline,
				})
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "project title")
	cmd.Flags().StringVar(&segment, "segment", "", "business segment")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline (RFC3339)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				items, err := e.Repo.ListProjects(ctx, owner)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Segment", "Status", "Progress"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Title, p.Segment, p.Status, fmt.Sprintf("%d%%", p.Progress)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project with its missions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				p, err := e.Repo.GetProject(ctx, owner, args[0])
				if err != nil {
					return err
				}
				missions, err := e.Repo.ListMissions(ctx, owner, p.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"project": p, "missions": missions})
				}
				fmt.Printf("%s [%s] %s (%d%%)\n", p.Title, p.Segment, p.Status, p.Progress)
				if p.Description != "" {
					fmt.Println(p.Description)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Mission", "Status", "Duration"})
				for _, m := range missions {
					dur := ""
					if m.EstimatedDuration != nil {
						dur = *m.EstimatedDuration
					}
					tw.AppendRow(table.Row{m.OrderIndex, m.Title, m.Status, dur})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				return e.Repo.DeleteProject(ctx, owner, args[0])
			})
		},
	}
}

func missionCmd() *cobra.Command {
	m := &cobra.Command{Use: "mission", Short: "Manage missions"}
	m.AddCommand(missionCreateCmd())
	m.AddCommand(missionStatusCmd())
	m.AddCommand(missionSwapCmd())
	m.AddCommand(missionDeleteCmd())
	return m
}

func missionCreateCmd() *cobra.Command {
	var projectID, title, description, deadline, duration string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Append a mission to a project's roadmap",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				opts := engine.MissionCreateOptions{
					OwnerID:     owner,
					ProjectID:   projectID,
					Title:       title,
					Description: description,
					Deadline:    deadline,
				}
				if cmd.Flags().Changed("duration") {
					opts.EstimatedDuration = &duration
				}
				m, err := e.CreateMission(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(m)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&title, "title", "", "mission title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline (RFC3339)")
	cmd.Flags().StringVar(&duration, "duration", "", "estimated duration, e.g. 2w")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func missionStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Move a mission through its lifecycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				m, err := e.UpdateMission(ctx, engine.MissionUpdateOptions{
					OwnerID: owner,
					ID:      args[0],
					Status:  status,
				})
				if err != nil {
					return err
				}
				return printJSON(m)
			})
		},
	}
	cmd.Flags().StringVar(&status, "to", "", "target status (pending, in_progress, completed)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func missionSwapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "swap <id> <other-id>",
		Short: "Swap two missions' roadmap positions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				return e.Repo.SwapMissionOrder(ctx, owner, args[0], args[1])
			})
		},
	}
}

func missionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				return e.Repo.DeleteMission(ctx, owner, args[0])
			})
		},
	}
}

func roadmapCmd() *cobra.Command {
	r := &cobra.Command{Use: "roadmap", Short: "Import roadmaps from text"}
	r.AddCommand(roadmapPreviewCmd())
	r.AddCommand(roadmapApplyCmd())
	return r
}

func readRoadmapFile(path string) ([]reconcile.Proposed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	proposals := roadmap.Parse(string(data))
	if len(proposals) == 0 {
		return nil, fmt.Errorf("no missions found in %s", path)
	}
	return proposals, nil
}

func roadmapPreviewCmd() *cobra.Command {
	var projectID, file string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show what a roadmap import would change",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				proposals, err := readRoadmapFile(file)
				if err != nil {
					return err
				}
				diffs, summary, err := e.RoadmapPreview(ctx, owner, projectID, proposals)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"diffs": diffs, "summary": summary})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Action", "Title", "Match", "Score"})
				for _, d := range diffs {
					score := ""
					if d.Score > 0 {
						score = fmt.Sprintf("%.2f", d.Score)
					}
					tw.AppendRow(table.Row{d.Class, d.Proposed.Title, d.MissionID, score})
				}
				tw.Render()
				fmt.Printf("%d to create, %d to update, %d unchanged\n", summary.Create, summary.Update, summary.Identical)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&file, "file", "", "roadmap text file")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func roadmapApplyCmd() *cobra.Command {
	var projectID, file string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a roadmap import",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				proposals, err := readRoadmapFile(file)
				if err != nil {
					return err
				}
				diffs, _, err := e.RoadmapPreview(ctx, owner, projectID, proposals)
				if err != nil {
					return err
				}
				res, applyErr := e.RoadmapApply(ctx, owner, projectID, diffs)
				if viper.GetBool("json") {
					_ = printJSON(res)
				} else {
					fmt.Print(res.Report)
					if res.ReportWarning != "" {
						fmt.Fprintf(os.Stderr, "warning: %s\n", res.ReportWarning)
					}
				}
				return applyErr
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&file, "file", "", "roadmap text file")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func taskCmd() *cobra.Command {
	t := &cobra.Command{Use: "task", Short: "Manage tasks"}
	t.AddCommand(taskCreateCmd())
	t.AddCommand(taskListCmd())
	t.AddCommand(taskDoneCmd())
	t.AddCommand(taskDeleteCmd())
	return t
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				opts.OwnerID = owner
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "task title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&opts.MissionID, "mission", "", "mission id")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority (low, medium, high)")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var filters repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				filters.OwnerID = owner
				items, err := e.Repo.ListTasks(ctx, filters)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Due"})
				for _, t := range items {
					due := ""
					if t.DueDate != nil {
						due = *t.DueDate
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Priority, due})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filters.ProjectID, "project", "", "filter by project")
	cmd.Flags().StringVar(&filters.MissionID, "mission", "", "filter by mission")
	cmd.Flags().StringVar(&filters.Status, "status", "", "filter by status")
	cmd.Flags().StringVar(&filters.Priority, "priority", "", "filter by priority")
	cmd.Flags().IntVar(&filters.Limit, "limit", 100, "maximum results")
	return cmd
}

func taskDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				status := "done"
				t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{OwnerID: owner, ID: args[0], Status: &status})
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				return e.Repo.DeleteTask(ctx, owner, args[0])
			})
		},
	}
}

func summaryCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Task and mission counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				s, err := e.StatusSummary(ctx, owner, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Kind", "Status", "Count"})
				for _, status := range []string{"pending", "in_progress", "completed"} {
					if n, ok := s.Missions[status]; ok {
						tw.AppendRow(table.Row{"mission", status, n})
					}
				}
				for _, status := range []string{"todo", "doing", "done"} {
					if n, ok := s.Tasks[status]; ok {
						tw.AppendRow(table.Row{"task", status, n})
					}
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "include a project's mission counts")
	return cmd
}

func financeCmd() *cobra.Command {
	f := &cobra.Command{Use: "finance", Short: "Track income and expenses"}
	f.AddCommand(financeAddCmd())
	f.AddCommand(financeListCmd())
	f.AddCommand(financeSummaryCmd())
	return f
}

func financeAddCmd() *cobra.Command {
	var opts engine.TransactionCreateOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				opts.OwnerID = owner
				t, err := e.CreateTransaction(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Type, "type", "income", "income or expense")
	cmd.Flags().Float64Var(&opts.Amount, "amount", 0, "amount")
	cmd.Flags().StringVar(&opts.Segment, "segment", "", "business segment")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Date, "date", "", "date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func financeListCmd() *cobra.Command {
	var filters repo.TransactionFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				filters.OwnerID = owner
				items, err := e.Repo.ListTransactions(ctx, filters)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Date", "Type", "Amount", "Segment", "Description"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.Date, t.Type, fmt.Sprintf("%.2f", t.Amount), t.Segment, t.Description})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filters.Type, "type", "", "filter by type")
	cmd.Flags().StringVar(&filters.Segment, "segment", "", "filter by segment")
	cmd.Flags().IntVar(&filters.Limit, "limit", 100, "maximum results")
	return cmd
}

func financeSummaryCmd() *cobra.Command {
	var segment string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Income and expense totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				income, err := e.Repo.SumTransactions(ctx, owner, "income", segment)
				if err != nil {
					return err
				}
				expenses, err := e.Repo.SumTransactions(ctx, owner, "expense", segment)
				if err != nil {
					return err
				}
				out := map[string]float64{"income": income, "expenses": expenses, "net": income - expenses}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Income:   %.2f\nExpenses: %.2f\nNet:      %.2f\n", income, expenses, income-expenses)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&segment, "segment", "", "restrict to one segment")
	return cmd
}

func noteCmd() *cobra.Command {
	n := &cobra.Command{Use: "note", Short: "Manage notes"}
	var title, content string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a note",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				note, err := e.CreateNote(ctx, owner, title, content)
				if err != nil {
					return err
				}
				return printJSON(note)
			})
		},
	}
	create.Flags().StringVar(&title, "title", "", "note title")
	create.Flags().StringVar(&content, "content", "", "note content")
	_ = create.MarkFlagRequired("title")
	n.AddCommand(create)
	n.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				items, err := e.Repo.ListNotes(ctx, owner)
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	})
	n.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				return e.Repo.DeleteNote(ctx, owner, args[0])
			})
		},
	})
	return n
}

func chatCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "chat <message>",
		Short: "Talk to the assistant",
		Long:  "Sends a message, prints the reply and lists any proposed action cards. Confirm or dismiss cards with 'nova chat confirm' and 'nova chat dismiss'.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				res, err := e.Chat(ctx, owner, strings.Join(args, " "))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Println(res.DisplayText)
				for _, card := range res.Cards {
					fmt.Printf("  [%d] %s", card.Ref.Index, card.Label)
					if title, ok := card.Params["title"]; ok {
						fmt.Printf(": %s", title)
					}
					fmt.Printf("  (confirm with: nova chat confirm %s %d)\n", card.Ref.MessageID, card.Ref.Index)
				}
				return nil
			})
		},
	}
	c.AddCommand(chatConfirmCmd())
	c.AddCommand(chatDismissCmd())
	return c
}

func chatConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <message-id> <index>",
		Short: "Confirm an action card",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				var index int
				if _, err := fmt.Sscanf(args[1], "%d", &index); err != nil {
					return fmt.Errorf("index must be a number: %w", err)
				}
				ref := directive.Ref{MessageID: args[0], Index: index}
				if err := e.ConfirmDirective(ctx, owner, ref); err != nil {
					return err
				}
				fmt.Println("executed")
				return nil
			})
		},
	}
}

func chatDismissCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <message-id> <index>",
		Short: "Dismiss an action card",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				var index int
				if _, err := fmt.Sscanf(args[1], "%d", &index); err != nil {
					return fmt.Errorf("index must be a number: %w", err)
				}
				if err := e.DismissDirective(ctx, owner, directive.Ref{MessageID: args[0], Index: index}); err != nil {
					return err
				}
				fmt.Println("dismissed")
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Activity log"}
	var n int
	var evtType, entityKind, entityID string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, owner, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSON(events)
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().StringVar(&evtType, "type", "", "event type filter")
	tail.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	tail.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	l.AddCommand(tail)
	return l
}

func apikeyCmd() *cobra.Command {
	k := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				plain, key, err := e.CreateAPIKey(ctx, owner, name)
				if err != nil {
					return err
				}
				fmt.Printf("id:  %s\nkey: %s\n", key.ID, plain)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "key name")
	_ = create.MarkFlagRequired("name")
	k.AddCommand(create)
	k.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				items, err := e.Repo.ListAPIKeys(ctx, owner)
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	})
	k.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, owner string, e engine.Engine) error {
				return e.Repo.DeleteAPIKey(ctx, owner, args[0])
			})
		},
	})
	return k
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			_, cfg, err := app.ResolveOwnerAndConfig(workspace, viper.GetString("owner-id"))
			if err != nil {
				return err
			}
			e, err := buildEngine(conn, workspace, cfg)
			if err != nil {
				return err
			}
			jwtSecret := cfg.Auth.JWTSecret
			if jwtSecret == "" {
				jwtSecret = os.Getenv("NOVA_JWT_SECRET")
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth: server.AuthConfig{
					JWTSecret:              jwtSecret,
					AllowLegacyOwnerHeader: cfg.Auth.AllowLegacyOwnerHeader,
				},
			})
			if err != nil {
				return err
			}
			server.StartWebhookDispatcher(e)
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Nova Dream API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func buildEngine(conn *sql.DB, workspace string, cfg *config.Config) (engine.Engine, error) {
	e := engine.New(conn, cfg)
	store, err := blob.New(workspace, cfg.Blob.SignedURLSecret)
	if err != nil {
		return e, err
	}
	e.Blobs = store
	if cfg.Assistant.Model != "" {
		e.Assistant = llm.New(llm.Config{
			BaseURL:   cfg.Assistant.BaseURL,
			APIKey:    cfg.Assistant.APIKey,
			Model:     cfg.Assistant.Model,
			TimeoutMS: cfg.Assistant.TimeoutMS,
		})
	}
	return e, nil
}

func withEngine(ctx context.Context, fn func(context.Context, string, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	owner, cfg, err := app.ResolveOwnerAndConfig(workspace, viper.GetString("owner-id"))
	if err != nil {
		return err
	}
	e, err := buildEngine(conn, workspace, cfg)
	if err != nil {
		return err
	}
	return fn(ctx, owner, e)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
