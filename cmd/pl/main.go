package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procline/internal/app"
	"procline/internal/config"
	"procline/internal/db"
	"procline/internal/domain"
	"procline/internal/engine"
	"procline/internal/repo"
	"procline/internal/server"
	"procline/internal/service"
)

var rootCmd = &cobra.Command{
	Use:   "pl",
	Short: "Procline CLI",
	Long: `Procline tracks procurement projects through their workflow steps.
A project is created from a procurement method template that generates its
ordered step plan with planned dates from per-step SLAs. Completing a step
stamps its actual end date, freezes its delay and starts the next pending
step. Access is role based: staff see their own department, admins see and
edit everything, executives see everything read-only.`,
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
	viper.SetEnvPrefix("PROCLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Int64("actor-id", 1, "acting user id")
	rootCmd.PersistentFlags().String("role", "admin", "acting role (staff, admin, executive)")
	rootCmd.PersistentFlags().Int64("department", 0, "acting department id (staff only)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("role", rootCmd.PersistentFlags().Lookup("role"))
	_ = viper.BindPFlag("department", rootCmd.PersistentFlags().Lookup("department"))
}

func registerCommands() {
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(stepCmd())
	rootCmd.AddCommand(progressCmd())
	rootCmd.AddCommand(overdueCmd())
	rootCmd.AddCommand(deptCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func actorFromFlags() (domain.Actor, error) {
	role := viper.GetString("role")
	if !domain.ValidRole(role) {
		return domain.Actor{}, fmt.Errorf("unknown role %q", role)
	}
	a := domain.Actor{ID: viper.GetInt64("actor-id"), Role: domain.Role(role)}
	if dept := viper.GetInt64("department"); dept != 0 {
		a.DepartmentID = &dept
	}
	return a, nil
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, arg)
	}
	return id, nil
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage procurement projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectDeleteCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var code, name, method, start string
	var dept int64
	var budget float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project with its generated step plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc service.Service, actor domain.Actor) error {
				p, steps, err := svc.CreateProject(ctx, actor, engine.ProjectCreateOptions{
					Code:              code,
					Name:              name,
					DepartmentID:      dept,
					ProcurementMethod: method,
					Budget:            budget,
					PlannedStartDate:  start,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"project": p, "steps": steps})
				}
				fmt.Printf("Created project %s (#%d) with %d steps\n", p.Code, p.ID, len(steps))
				renderStepTable(stepRows(steps))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "project code")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().Int64Var(&dept, "dept", 0, "owning department id")
	cmd.Flags().StringVar(&method, "method", "", "procurement method")
	cmd.Flags().Float64Var(&budget, "budget", 0, "budget")
	cmd.Flags().StringVar(&start, "start", "", "planned start date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("dept")
	_ = cmd.MarkFlagRequired("method")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func projectListCmd() *cobra.Command {
	var dept int64
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc service.Service, actor domain.Actor) error {
				f := repo.ProjectFilters{Status: status}
				if dept != 0 {
					f.DepartmentID = &dept
				}
				items, err := svc.ListProjects(ctx, actor, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Code", "Name", "Dept", "Method", "Status", "Planned Start"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Code, p.Name, p.DepartmentID, p.ProcurementMethod, p.Status, p.PlannedStartDate})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&dept, "dept", 0, "department filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "project id")
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc service.Service, actor domain.Actor) error {
				p, err := svc.GetProject(ctx, actor, id)
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "project id")
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc service.Service, actor domain.Actor) error {
				if err := svc.DeleteProject(ctx, actor, id); err != nil {
					return err
				}
				fmt.Printf("Deleted project #%d\n", id)
				return nil
			})
		},
	}
	return cmd
}

func stepCmd() *cobra.Command {
	step := &cobra.Command{Use: "step", Short: "Work with project steps"}
	step.AddCommand(stepListCmd())
	step.AddCommand(stepShowCmd())
	step.AddCommand(stepStatusCmd("start", "in_progress", "Start a step"))
	step.AddCommand(stepStatusCmd("hold", "on_hold", "Put a step on hold"))
	step.AddCommand(stepStatusCmd("complete", "completed", "Complete a step"))
	step.AddCommand(stepSetStatusCmd())
	step.AddCommand(stepUpdateCmd())
	step.AddCommand(stepDelayCmd())
	return step
}

func stepListCmd() *cobra.Command {
	var projectID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List steps of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc service.Service, actor domain.Actor) error {
				steps, err := svc.ListSteps(ctx, actor, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(steps)
				}
				renderStepTable(viewRows(steps))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func stepShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <step-id>",
		Short: "Show a step with derived schedule fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "step id")
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc service.Service, actor domain.Actor) error {
				s, err := svc.GetStep(ctx, actor, id)
				if err != nil {
					return err
				}
				return printJSON(s)
			})
		},
	}
	return cmd
}

func stepStatusCmd(use, status, short string) *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   use + " <step-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "step id")
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc service.Service, actor domain.Actor) error {
				s, err := svc.UpdateStepStatus(ctx, actor, id, status, optionalString(notes))
				if err != nil {
					return err
				}
				return printJSON(s)
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "notes to attach")
	return cmd
}

func stepSetStatusCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "set-status <step-id> <status>",
		Short: "Set a step status explicitly",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "step id")
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc service.Service, actor domain.Actor) error {
				s, err := svc.UpdateStepStatus(ctx, actor, id, args[1], optionalString(notes))
				if err != nil {
					return err
				}
				return printJSON(s)
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "notes to attach")
	return cmd
}

func stepUpdateCmd() *cobra.Command {
	var name, desc, notes, plannedStart, plannedEnd string
	var sla int
	var critical, weekends bool
	cmd := &cobra.Command{
		Use:   "update <step-id>",
		Short: "Edit step details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "step id")
			if err != nil {
				return err
			}
			patch := engine.StepDetailsPatch{}
			if cmd.Flags().Changed("name") {
				patch.StepName = &name
			}
			if cmd.Flags().Changed("description") {
				patch.StepDescription = &desc
			}
			if cmd.Flags().Changed("notes") {
				patch.Notes = &notes
			}
			if cmd.Flags().Changed("planned-start") {
				patch.PlannedStartDate = &plannedStart
			}
			if cmd.Flags().Changed("planned-end") {
				patch.PlannedEndDate = &plannedEnd
			}
			if cmd.Flags().Changed("sla-days") {
				patch.SLADays = &sla
			}
			if cmd.Flags().Changed("critical") {
				patch.IsCritical = &critical
			}
			if cmd.Flags().Changed("allow-weekends") {
				patch.AllowWeekends = &weekends
			}
			return withService(cmd.Context(), func(ctx context.Context, svc service.Service, actor domain.Actor) error {
				s, err := svc.UpdateStepDetails(ctx, actor, id, patch)
				if err != nil {
					return err
				}
				return printJSON(s)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "step name")
	cmd.Flags().StringVar(&desc, "description", "", "step description")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	cmd.Flags().StringVar(&plannedStart, "planned-start", "", "planned start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&plannedEnd, "planned-end", "", "planned end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&sla, "sla-days", 0, "SLA in days")
	cmd.Flags().BoolVar(&critical, "critical", false, "mark as critical")
	cmd.Flags().BoolVar(&weekends, "allow-weekends", false, "count weekends toward the SLA")
	return cmd
}

func stepDelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delay <step-id>",
		Short: "Delay report for a step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "step id")
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc service.Service, actor domain.Actor) error {
				d, err := svc.StepDelay(ctx, actor, id)
				if err != nil {
					return err
				}
				return printJSON(d)
			})
		},
	}
	return cmd
}

func progressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress <project-id>",
		Short: "Aggregate step progress for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "project id")
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc service.Service, actor domain.Actor) error {
				p, err := svc.Progress(ctx, actor, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				fmt.Printf("Project #%d: %d%% complete (%d/%d steps)\n", p.ProjectID, p.ProgressPercentage, p.CompletedSteps, p.TotalSteps)
				fmt.Printf("  in progress %d, pending %d, on hold %d, overdue %d\n", p.InProgressSteps, p.PendingSteps, p.OnHoldSteps, p.OverdueSteps)
				fmt.Printf("  delay: %d days total, %d days average\n", p.TotalDelayDays, p.AverageDelayDays)
				if p.CurrentStep != nil {
					fmt.Printf("  current step: #%d %s (%s)\n", p.CurrentStep.StepNumber, p.CurrentStep.StepName, p.CurrentStep.ComputedStatus)
				}
				return nil
			})
		},
	}
	return cmd
}

func overdueCmd() *cobra.Command {
	var dept int64
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List overdue steps, oldest deadline first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc service.Service, actor domain.Actor) error {
				var filter *int64
				if dept != 0 {
					filter = &dept
				}
				steps, err := svc.OverdueSteps(ctx, actor, filter)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(steps)
				}
				renderStepTable(viewRows(steps))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&dept, "dept", 0, "department filter")
	return cmd
}

func deptCmd() *cobra.Command {
	dept := &cobra.Command{Use: "dept", Short: "Departments"}
	dept.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List departments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc service.Service, actor domain.Actor) error {
				items, err := svc.ListDepartments(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Code", "Name", "Active"})
				for _, d := range items {
					tw.AppendRow(table.Row{d.ID, d.Code, d.Name, d.Active})
				}
				tw.Render()
				return nil
			})
		},
	})
	return dept
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Users"}
	user.AddCommand(userCreateCmd())
	user.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc service.Service, _ domain.Actor) error {
				items, err := svc.Engine.Repo.ListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Role", "Dept", "Active"})
				for _, u := range items {
					dept := ""
					if u.DepartmentID != nil {
						dept = strconv.FormatInt(*u.DepartmentID, 10)
					}
					tw.AppendRow(table.Row{u.ID, u.Name, u.Role, dept, u.Active})
				}
				tw.Render()
				return nil
			})
		},
	})
	return user
}

func userCreateCmd() *cobra.Command {
	var name, role string
	var dept int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !domain.ValidRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			return withService(cmd.Context(), func(ctx context.Context, svc service.Service, _ domain.Actor) error {
				u := domain.User{
					Name:      name,
					Role:      domain.Role(role),
					Active:    true,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if dept != 0 {
					u.DepartmentID = &dept
				}
				id, err := svc.Engine.Repo.InsertUser(ctx, u)
				if err != nil {
					return err
				}
				u.ID = id
				return printJSON(u)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "user name")
	cmd.Flags().StringVar(&role, "role", "staff", "role (staff, admin, executive)")
	cmd.Flags().Int64Var(&dept, "dept", 0, "department id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func auditCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "audit <project|step> <id>",
		Short: "Change history of a project or step",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1], "entity id")
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc service.Service, actor domain.Actor) error {
				entries, err := svc.AuditTrail(ctx, actor, args[0], id, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Field", "Old", "New", "Actor"})
				for _, e := range entries {
					tw.AppendRow(table.Row{e.TS, e.Field, e.OldValue, e.NewValue, e.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default procline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("Wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	})
	return cfg
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devHeaders bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cfg, err := app.Setup(cmd.Context(), viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer eng.DB.Close()

			secret := os.Getenv("PROCLINE_JWT_SECRET")
			if secret == "" {
				secret = cfg.Server.JWTSecret
			}
			if secret == "" && !devHeaders {
				return fmt.Errorf("PROCLINE_JWT_SECRET is required for bearer auth (or run with --dev-headers)")
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			handler, err := server.New(server.Config{
				Service:  service.New(eng),
				BasePath: basePath,
				Auth: server.AuthConfig{
					JWTSecret:      secret,
					AllowDevHeader: devHeaders || cfg.Server.AllowDevHeader,
				},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Procline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	cmd.Flags().BoolVar(&devHeaders, "dev-headers", false, "authenticate from X-Actor-* headers (development only)")
	return cmd
}

// --- helpers ---

func withService(ctx context.Context, fn func(context.Context, service.Service, domain.Actor) error) error {
	actor, err := actorFromFlags()
	if err != nil {
		return err
	}
	eng, _, err := app.Setup(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer eng.DB.Close()
	return fn(ctx, service.New(eng), actor)
}

type stepRow struct {
	ID, Number int64
	Name       string
	Status     string
	Planned    string
	Warning    string
}

func stepRows(steps []domain.ProjectStep) []stepRow {
	rows := make([]stepRow, len(steps))
	for i, s := range steps {
		rows[i] = stepRow{
			ID:      s.ID,
			Number:  int64(s.StepNumber),
			Name:    s.StepName,
			Status:  string(s.Status),
			Planned: s.PlannedStartDate + " .. " + s.PlannedEndDate,
		}
	}
	return rows
}

func viewRows(steps []domain.StepView) []stepRow {
	rows := make([]stepRow, len(steps))
	for i, s := range steps {
		rows[i] = stepRow{
			ID:      s.ID,
			Number:  int64(s.StepNumber),
			Name:    s.StepName,
			Status:  string(s.ComputedStatus),
			Planned: s.PlannedStartDate + " .. " + s.PlannedEndDate,
			Warning: string(s.WarningLevel),
		}
	}
	return rows
}

func renderStepTable(rows []stepRow) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "#", "Name", "Status", "Planned", "Warning"})
	for _, r := range rows {
		tw.AppendRow(table.Row{r.ID, r.Number, r.Name, r.Status, r.Planned, r.Warning})
	}
	tw.Render()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
