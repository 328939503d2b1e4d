package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/classhub/classhub-go/internal/api"
	"github.com/classhub/classhub-go/internal/auth"
	"github.com/classhub/classhub-go/internal/classdetail"
	"github.com/classhub/classhub-go/internal/classes"
	"github.com/classhub/classhub-go/internal/models"
	"github.com/classhub/classhub-go/internal/notify"
	"github.com/classhub/classhub-go/internal/stubhub"
	"github.com/classhub/classhub-go/pkg/config"
	"github.com/classhub/classhub-go/pkg/export"
	"github.com/classhub/classhub-go/pkg/kvstore"
	"github.com/classhub/classhub-go/pkg/logger"
	"github.com/classhub/classhub-go/pkg/metrics"
	"github.com/classhub/classhub-go/pkg/storage"
	"github.com/classhub/classhub-go/pkg/toast"
)

const usage = `classhub <command> [args]

Commands:
  register <name> <email> <password>     create an account and sign in
  login <email> <password> [-remember]   sign in
  logout                                 sign out
  whoami                                 show the signed-in identity
  classes [-archived]                    list classes
  create <name> [-section -subject -room]
  archive <class-id>                     soft-delete a class
  restore <class-id>                     un-archive a class
  delete <class-id>                      permanently delete a class
  join <class-code>                      enroll by class code
  leave <class-id>                       unenroll from a class
  roster <class-id>                      list participants
  topics <class-id>                      list the topic tree
  feed <class-id>                        show the activity stream
  invite <class-id> <email> [-as student|subteacher]
  announce <class-id> <message>
  notifications                          list notification history
  watch                                  stream realtime notifications
  export-grades <class-id> [-format csv|pdf] [-out path]
  serve-stub [-addr :8085]               run the in-memory stub backend`

// app bundles the wired client stack for one invocation.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	client  *api.Client
	store   *auth.Store
	manager *classes.Manager
	details *classdetail.Cache
	collect *metrics.Collector
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := wire(ctx, cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("startup failed", "error", err)
	}

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "classhub: %v\n", err)
		os.Exit(1)
	}
}

func wire(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*app, error) {
	kv, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	collect := metrics.NewCollector()
	client := api.New(cfg.API, logr, api.WithMetrics(collect))
	store := auth.NewStore(client, kv, nil, logr)
	store.Init(ctx)

	toasts := toast.LogPresenter{Logger: logr}
	return &app{
		cfg:     cfg,
		logger:  logr,
		client:  client,
		store:   store,
		manager: classes.NewManager(client, store, nil, logr, classes.WithMetrics(collect), classes.WithToasts(toasts)),
		details: classdetail.NewCache(client, store, nil, logr, classdetail.WithToasts(toasts)),
		collect: collect,
	}, nil
}

func openStore(cfg *config.Config) (kvstore.Store, error) {
	if cfg.Store.Backend == "redis" {
		return kvstore.NewRedisStore(cfg.Store.Redis)
	}
	return kvstore.NewFileStore(cfg.Store.Dir)
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		a.store.Logout(ctx)
		fmt.Println("signed out")
		return nil
	case "whoami":
		return a.whoami(ctx)
	case "classes":
		return a.listClasses(ctx, args)
	case "create":
		return a.createClass(ctx, args)
	case "archive":
		return a.classCommand(ctx, args, a.manager.SoftDelete)
	case "restore":
		return a.classCommand(ctx, args, a.manager.Restore)
	case "delete":
		return a.classCommand(ctx, args, a.manager.HardDelete)
	case "join":
		return a.join(ctx, args)
	case "leave":
		return a.classCommand(ctx, args, a.manager.Unenroll)
	case "roster":
		return a.roster(ctx, args)
	case "topics":
		return a.topics(ctx, args)
	case "feed":
		return a.feed(ctx, args)
	case "invite":
		return a.invite(ctx, args)
	case "announce":
		return a.announce(ctx, args)
	case "notifications":
		return a.notifications(ctx)
	case "watch":
		return a.watch(ctx)
	case "export-grades":
		return a.exportGrades(ctx, args)
	case "serve-stub":
		return a.serveStub(ctx, args)
	case "help", "-h", "--help":
		fmt.Println(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) register(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: register <name> <email> <password>")
	}
	if err := a.store.Register(ctx, args[0], args[1], args[2]); err != nil {
		return err
	}
	fmt.Printf("welcome, %s\n", args[0])
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	remember := fs.Bool("remember", true, "persist the session")
	pos, err := splitArgs(fs, args, 2)
	if err != nil {
		return fmt.Errorf("usage: login <email> <password> [-remember]")
	}
	if err := a.store.Login(ctx, pos[0], pos[1], *remember); err != nil {
		return err
	}
	user, err := a.store.CurrentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s <%s>\n", user.Name, user.Email)
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	if a.store.State() != auth.StateAuthenticated {
		fmt.Println("not signed in")
		return nil
	}
	user, err := a.store.CurrentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s> (id %d)\n", user.Name, user.Email, user.ID)
	return nil
}

func (a *app) listClasses(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("classes", flag.ContinueOnError)
	archived := fs.Bool("archived", false, "show archived classes instead")
	if err := fs.Parse(args); err != nil {
		return err
	}
	userID, err := a.requireUser()
	if err != nil {
		return err
	}
	if err := a.manager.FetchForUser(ctx, userID); err != nil {
		return err
	}
	list := a.manager.Active()
	if *archived {
		list = a.manager.Archived()
	}
	if len(list) == 0 {
		fmt.Println("no classes")
		return nil
	}
	for _, cl := range list {
		fmt.Printf("%6d  %-30s %-12s code=%s role=%s\n", cl.ID, cl.Name, cl.Subject, cl.ClassCode, cl.Role)
	}
	return nil
}

func (a *app) createClass(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	section := fs.String("section", "", "section")
	subject := fs.String("subject", "", "subject")
	room := fs.String("room", "", "room")
	pos, err := splitArgs(fs, args, 1)
	if err != nil {
		return fmt.Errorf("usage: create <name> [-section -subject -room]")
	}
	userID, err := a.requireUser()
	if err != nil {
		return err
	}
	created, err := a.manager.Create(ctx, models.CreateClassRequest{
		UserID:  userID,
		Name:    pos[0],
		Section: *section,
		Subject: *subject,
		Room:    *room,
	})
	if err != nil {
		return err
	}
	fmt.Printf("created class %d, join code %s\n", created.ID, created.ClassCode)
	return nil
}

func (a *app) classCommand(ctx context.Context, args []string, op func(context.Context, int64) error) error {
	id, err := argClassID(args)
	if err != nil {
		return err
	}
	if _, err := a.requireUser(); err != nil {
		return err
	}
	// Make sure the record is in the local collection first: archive and
	// restore act on the fetched working set.
	if err := a.manager.FetchForUser(ctx, a.store.CurrentUserID()); err != nil {
		return err
	}
	return op(ctx, id)
}

func (a *app) join(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: join <class-code>")
	}
	if _, err := a.requireUser(); err != nil {
		return err
	}
	return a.manager.Enroll(ctx, args[0])
}

func (a *app) roster(ctx context.Context, args []string) error {
	id, err := argClassID(args)
	if err != nil {
		return err
	}
	a.details.Open(id)
	if err := a.details.LoadParticipants(ctx, id); err != nil {
		return err
	}
	for _, p := range a.details.Participants() {
		fmt.Printf("%6d  %-25s %-30s %s\n", p.UserID, p.Name, p.Email, p.Role)
	}
	return nil
}

func (a *app) topics(ctx context.Context, args []string) error {
	id, err := argClassID(args)
	if err != nil {
		return err
	}
	a.details.Open(id)
	if err := a.details.LoadTopics(ctx, id); err != nil {
		return err
	}
	for _, topic := range a.details.Topics() {
		fmt.Printf("%s\n", topic.Title)
		for _, as := range topic.Assignments {
			points := "-"
			if as.Points != nil {
				points = strconv.Itoa(*as.Points)
			}
			fmt.Printf("  assignment  %-35s points=%s due=%s\n", as.Title, points, as.DueDate)
		}
		for _, m := range topic.Materials {
			fmt.Printf("  material    %s\n", m.Title)
		}
	}
	return nil
}

func (a *app) feed(ctx context.Context, args []string) error {
	id, err := argClassID(args)
	if err != nil {
		return err
	}
	a.details.Open(id)
	if err := a.details.LoadDetails(ctx, id); err != nil {
		return err
	}
	for _, item := range a.details.Feed() {
		fmt.Printf("%-22s %-14s %s\n", item.ActivityDate, item.EntityType, item.Content)
	}
	return nil
}

func (a *app) invite(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("invite", flag.ContinueOnError)
	as := fs.String("as", "student", "student or subteacher")
	pos, err := splitArgs(fs, args, 2)
	if err != nil {
		return fmt.Errorf("usage: invite <class-id> <email> [-as student|subteacher]")
	}
	id, err := strconv.ParseInt(pos[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid class id %q", pos[0])
	}
	a.details.Open(id)
	switch *as {
	case "student":
		return a.details.AddStudent(ctx, id, pos[1])
	case "subteacher":
		return a.details.AddSubTeacher(ctx, id, pos[1])
	default:
		return fmt.Errorf("unknown role %q", *as)
	}
}

func (a *app) announce(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: announce <class-id> <message>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid class id %q", args[0])
	}
	a.details.Open(id)
	return a.details.CreateAnnouncement(ctx, models.CreateAnnouncementRequest{
		ClassID: id,
		Message: args[1],
	})
}

func (a *app) notifications(ctx context.Context) error {
	userID, err := a.requireUser()
	if err != nil {
		return err
	}
	history, err := notify.NewHistory(a.client).Fetch(ctx, userID)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no notifications")
		return nil
	}
	for _, n := range history {
		read := " "
		if n.IsRead {
			read = "x"
		}
		fmt.Printf("[%s] %-18s %s\n", read, n.Type, n.Message)
	}
	return nil
}

// watch keeps the realtime channel open and prints notifications as they
// arrive, until interrupted.
func (a *app) watch(ctx context.Context) error {
	if _, err := a.requireUser(); err != nil {
		return err
	}
	if !a.cfg.Realtime.Enabled || a.cfg.Realtime.HubURL == "" {
		return fmt.Errorf("realtime channel is not configured (REALTIME_HUB_URL)")
	}
	channel := notify.NewChannel(a.cfg.Realtime, a.store, a.logger, notify.WithMetrics(a.collect))
	channel.Subscribe(func(n models.Notification) {
		fmt.Printf("%s  %-18s %s\n", time.Now().Format(time.Kitchen), n.Type, n.Message)
	})
	channel.Connect(ctx)
	defer channel.Close()

	fmt.Println("watching for notifications, ctrl-c to stop")
	<-ctx.Done()
	return nil
}

// exportGrades materializes the grade sheet from the topic tree and roster.
// Scores come from the server once the submissions surface lands; until
// then the sheet carries the assignment columns with blank cells.
func (a *app) exportGrades(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export-grades", flag.ContinueOnError)
	format := fs.String("format", "csv", "csv or pdf")
	out := fs.String("out", "", "output path (default: export dir)")
	pos, err := splitArgs(fs, args, 1)
	if err != nil {
		return fmt.Errorf("usage: export-grades <class-id> [-format csv|pdf] [-out path]")
	}
	id, err := strconv.ParseInt(pos[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid class id %q", pos[0])
	}
	if _, err := a.requireUser(); err != nil {
		return err
	}
	if err := a.manager.FetchForUser(ctx, a.store.CurrentUserID()); err != nil {
		return err
	}
	class, ok := a.manager.Get(id)
	if !ok {
		return fmt.Errorf("class %d is not in your collection", id)
	}
	if !models.ParseRole(class.Role).Access().ViewGrades {
		return fmt.Errorf("grades are not visible with the %s role", class.Role)
	}

	a.details.Open(id)
	if err := a.details.LoadAll(ctx, id); err != nil {
		return err
	}

	sheet := buildGradeSheet(class.Name, a.details.Topics(), a.details.Participants())

	var rendered []byte
	switch *format {
	case "csv":
		rendered, err = export.RenderCSV(sheet)
	case "pdf":
		rendered, err = export.RenderPDF(sheet)
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
	if err != nil {
		return err
	}

	exports, err := storage.NewExportStore(a.cfg.Export.Dir)
	if err != nil {
		return err
	}
	name := *out
	if name == "" {
		name = fmt.Sprintf("grades-%d.%s", id, *format)
	}
	path, err := exports.Save(name, rendered)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

// serveStub runs the in-memory backend plus the metrics endpoint, handy for
// demos and for pointing a second classhub process at a live API.
func (a *app) serveStub(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve-stub", flag.ContinueOnError)
	addr := fs.String("addr", ":8085", "listen address")
	secret := fs.String("secret", "classhub-stub", "token signing secret")
	if err := fs.Parse(args); err != nil {
		return err
	}

	hub := stubhub.New(*secret, a.logger)
	router := hub.Router()
	router.GET("/metrics", gin.WrapH(a.collect.Handler()))

	srv := &http.Server{Addr: *addr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.logger.Sugar().Infow("stub backend listening", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// buildGradeSheet flattens the topic tree into assignment columns and the
// roster into student rows. Only participants with the Student role appear.
func buildGradeSheet(className string, topics []models.Topic, roster []models.Participant) export.GradeSheet {
	sheet := export.GradeSheet{ClassName: className}
	for _, topic := range topics {
		for _, as := range topic.Assignments {
			sheet.Assignments = append(sheet.Assignments, export.AssignmentColumn{
				ID: as.ID, Title: as.Title, Points: as.Points,
			})
		}
	}
	for _, p := range roster {
		if models.ParseRole(p.Role) != models.RoleStudent {
			continue
		}
		sheet.Students = append(sheet.Students, export.StudentRow{Name: p.Name, Email: p.Email})
	}
	return sheet
}

func (a *app) requireUser() (int64, error) {
	id := a.store.CurrentUserID()
	if id == 0 {
		return 0, fmt.Errorf("not signed in; run classhub login first")
	}
	return id, nil
}

func argClassID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one class id argument")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid class id %q", args[0])
	}
	return id, nil
}

// splitArgs takes n leading positional arguments and parses the rest as
// flags.
func splitArgs(fs *flag.FlagSet, args []string, n int) ([]string, error) {
	if len(args) < n {
		return nil, fmt.Errorf("missing arguments")
	}
	if err := fs.Parse(args[n:]); err != nil {
		return nil, err
	}
	return args[:n], nil
}
