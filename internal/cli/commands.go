package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"expensetracker/internal/core"
	"expensetracker/internal/forms"
	"expensetracker/internal/log"
	"expensetracker/internal/router"
	"expensetracker/internal/services"
	"expensetracker/internal/session"
	"expensetracker/internal/views"
	"expensetracker/internal/voice"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrExpenseNotFound = errors.New("expense not found")
)

// RedirectError reports a command that its route guard turned away.
type RedirectError struct {
	Command string
	To      string
}

func (e *RedirectError) Error() string {
	switch e.To {
	case router.LoginPath:
		return fmt.Sprintf("%s needs a signed-in user: run 'tracker login'", e.Command)
	case router.UpgradePath:
		return fmt.Sprintf("%s is a premium feature: run 'tracker upgrade'", e.Command)
	default:
		return fmt.Sprintf("%s redirected to %s", e.Command, e.To)
	}
}

type command struct {
	name    string
	path    string
	summary string
	run     func(a *App, ctx context.Context, fs *flag.FlagSet, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"signup", "/signup", "create an account", (*App).signup},
		{"login", "/login", "sign in", (*App).login},
		{"logout", "/profile", "sign out and forget cached data", (*App).logout},
		{"whoami", "/profile", "show the signed-in user", (*App).whoami},
		{"add", "/add", "add an expense", (*App).add},
		{"edit", "/add", "edit an expense", (*App).edit},
		{"delete", "/browse", "delete an expense", (*App).remove},
		{"list", "/browse", "browse expenses with filters and pages", (*App).list},
		{"dashboard", "/dashboard", "summary and recent expenses", (*App).dashboard},
		{"stats", "/dashboard", "spending statistics", (*App).stats},
		{"voice", "/add/voice", "add an expense by voice (premium)", (*App).voiceEntry},
		{"leaderboard", "/leaderboard", "top spenders (premium)", (*App).leaderboard},
		{"analytics", "/analytics", "advanced analytics (premium)", (*App).analytics},
		{"upgrade", "/upgrade", "buy premium", (*App).upgrade},
		{"forgot-password", "/forgot-password", "request a password reset email", (*App).forgotPassword},
		{"reset-password", "/reset-password", "set a new password with a reset token", (*App).resetPassword},
	}
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// Usage prints the command list.
func Usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: tracker <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-16s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'tracker <command> -h' for the flags of a command.")
}

// Run dispatches args[0] after checking its route against the session.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		Usage(a.Out)
		return nil
	}
	cmd, ok := lookup(args[0])
	if !ok {
		Usage(a.Err)
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}

	if d := a.Guard.Resolve(cmd.path); !d.Allow {
		return &RedirectError{Command: cmd.name, To: d.Redirect}
	}

	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.SetOutput(a.Err)
	err := cmd.run(a, ctx, fs, args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

// ask returns v, or prompts for it when v is empty and input is a terminal.
func (a *App) ask(ctx context.Context, v *string, label string) error {
	if *v != "" || !a.Prompt.Interactive() {
		return nil
	}
	answer, err := a.Prompt.Ask(ctx, label)
	if err != nil {
		return err
	}
	*v = answer
	return nil
}

func (a *App) password(ctx context.Context, v *string, label string) error {
	if *v != "" {
		return nil
	}
	pw, err := a.Prompt.Password(ctx, label)
	if err != nil {
		return err
	}
	*v = pw
	return nil
}

func (a *App) signup(ctx context.Context, fs *flag.FlagSet, args []string) error {
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	pw := fs.String("password", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.ask(ctx, name, "Name"); err != nil {
		return err
	}
	if err := a.ask(ctx, email, "Email"); err != nil {
		return err
	}
	if err := a.password(ctx, pw, "Password"); err != nil {
		return err
	}

	s, err := a.Auth.Register(ctx, *name, *email, *pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Welcome, %s.\n", s.Name)
	return nil
}

func (a *App) login(ctx context.Context, fs *flag.FlagSet, args []string) error {
	email := fs.String("email", "", "email address")
	pw := fs.String("password", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.ask(ctx, email, "Email"); err != nil {
		return err
	}
	if err := a.password(ctx, pw, "Password"); err != nil {
		return err
	}

	s, err := a.Auth.Login(ctx, *email, *pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Signed in as %s <%s>.\n", s.Name, s.Email)
	return nil
}

func (a *App) logout(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.Auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.Out, "Signed out.")
	return nil
}

func (a *App) whoami(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := a.Auth.Profile(ctx)
	if err != nil {
		return err
	}
	plan := "Free"
	if s.IsPremium {
		plan = "Premium"
	}
	fmt.Fprintf(a.Out, "%s <%s>\nPlan: %s\n", s.Name, s.Email, plan)
	return nil
}

// expenseFlags binds the form fields to flags.
func expenseFlags(fs *flag.FlagSet, f *forms.ExpenseForm) (tags, frequency *string) {
	fs.StringVar(&f.Title, "title", f.Title, "title")
	fs.StringVar(&f.Amount, "amount", f.Amount, "amount, e.g. 12.50")
	fs.StringVar(&f.Category, "category", f.Category, "category: "+strings.Join(core.Categories, ", "))
	fs.StringVar(&f.PaymentMethod, "payment", f.PaymentMethod, "payment method: "+strings.Join(core.PaymentMethods, ", "))
	fs.StringVar(&f.Date, "date", f.Date, "date as YYYY-MM-DD")
	fs.StringVar(&f.Description, "desc", f.Description, "description")
	tags = fs.String("tags", "", "comma-separated tags")
	frequency = fs.String("recurring", "", "repeat: daily, weekly, monthly, quarterly or yearly; 'none' to stop")
	return tags, frequency
}

// applyTagsAndRecurrence copies the tag and recurrence flags that were set
// into f.
func applyTagsAndRecurrence(fs *flag.FlagSet, f *forms.ExpenseForm, tags, frequency string) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "tags":
			f.Tags.Clear()
			for _, t := range strings.Split(tags, ",") {
				f.Tags.Add(t)
			}
		case "recurring":
			if strings.EqualFold(strings.TrimSpace(frequency), "none") || frequency == "" {
				f.SetRecurring(false)
				return
			}
			f.SetRecurring(true)
			f.SetFrequency(strings.ToLower(strings.TrimSpace(frequency)))
		}
	})
}

func (a *App) add(ctx context.Context, fs *flag.FlagSet, args []string) error {
	f := forms.NewExpenseForm(a.now())
	tags, frequency := expenseFlags(fs, f)
	if err := fs.Parse(args); err != nil {
		return err
	}
	applyTagsAndRecurrence(fs, f, *tags, *frequency)

	for _, q := range []struct {
		v     *string
		label string
	}{
		{&f.Title, "Title"},
		{&f.Amount, "Amount"},
		{&f.Category, "Category"},
		{&f.PaymentMethod, "Payment method"},
	} {
		if err := a.ask(ctx, q.v, q.label); err != nil {
			return err
		}
	}

	req, err := f.CreateRequest(a.Sessions.UserID())
	if err != nil {
		return err
	}
	e, err := a.Expenses.CreateExpense(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Added %s (%s) on %s. ID %s\n",
		e.Title, core.FormatCurrency(e.Amount.Decimal, a.Config.Currency), e.Date, e.ID)
	return nil
}

// findExpense walks the unfiltered list until it meets id.
func (a *App) findExpense(ctx context.Context, id string) (core.Expense, error) {
	const limit = 100
	for page := 1; ; page++ {
		res, err := a.Expenses.ListExpenses(ctx, services.ListQuery{
			UserID: a.Sessions.UserID(),
			Page:   page,
			Limit:  limit,
		})
		if err != nil {
			return core.Expense{}, err
		}
		for _, e := range res.Expenses {
			if e.ID == id {
				return e, nil
			}
		}
		if len(res.Expenses) == 0 || page*limit >= res.Total {
			return core.Expense{}, fmt.Errorf("%w: %s", ErrExpenseNotFound, id)
		}
	}
}

func (a *App) edit(ctx context.Context, fs *flag.FlagSet, args []string) error {
	id := fs.String("id", "", "expense id")
	f := forms.NewExpenseForm(a.now())
	tags, frequency := expenseFlags(fs, f)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return core.ErrMissingID
	}

	e, err := a.findExpense(ctx, *id)
	if err != nil {
		return err
	}
	f.LoadExpense(e)
	// reparse so flags override the loaded values
	if err := fs.Parse(args); err != nil {
		return err
	}
	applyTagsAndRecurrence(fs, f, *tags, *frequency)

	req, err := f.UpdateRequest(e.ID, a.Sessions.UserID())
	if err != nil {
		return err
	}
	updated, err := a.Expenses.UpdateExpense(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Updated %s (%s).\n", updated.Title, core.FormatCurrency(updated.Amount.Decimal, a.Config.Currency))
	return nil
}

func (a *App) remove(ctx context.Context, fs *flag.FlagSet, args []string) error {
	id := fs.String("id", "", "expense id")
	yes := fs.Bool("yes", false, "skip the confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return core.ErrMissingID
	}
	if !*yes && a.Prompt.Interactive() {
		ok, err := a.Prompt.Confirm(ctx, "Delete expense "+*id+"?", false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.Out, "Kept.")
			return nil
		}
	}
	if err := a.Expenses.DeleteExpense(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintln(a.Out, "Deleted.")
	return nil
}

func (a *App) list(ctx context.Context, fs *flag.FlagSet, args []string) error {
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", a.Config.PageSize, "expenses per page")
	category := fs.String("category", "", "only this category")
	payment := fs.String("payment", "", "only this payment method")
	search := fs.String("search", "", "text in title or description")
	tags := fs.String("tags", "", "comma-separated tags, all required")
	from := fs.String("from", "", "from date, YYYY-MM-DD")
	to := fs.String("to", "", "to date, YYYY-MM-DD")
	lo := fs.String("min", "", "minimum amount")
	hi := fs.String("max", "", "maximum amount")
	watch := fs.Bool("watch", false, "keep the list open: n/p to page, l <size> to resize pages, r to retry, q to quit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filters := forms.NewFilterState()
	errs := []error{
		filters.SetCategory(*category),
		filters.SetPaymentMethod(*payment),
		filters.SetDateRange(*from, *to),
		filters.SetAmountRange(*lo, *hi),
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	filters.SetSearch(*search)
	if *tags != "" {
		for _, t := range strings.Split(*tags, ",") {
			filters.AddTag(t)
		}
	}

	v := views.NewListView(a.Expenses, a.Sessions.UserID(), *limit, a.viewOptions())
	v.SetFilters(filters.Filters())
	v.SetPage(*page)
	return a.show(ctx, v, *watch, func(key string) bool {
		switch key {
		case "n":
			v.Next()
		case "p":
			v.Prev()
		default:
			size, ok := strings.CutPrefix(key, "l ")
			if !ok {
				return false
			}
			n, err := strconv.Atoi(strings.TrimSpace(size))
			if err != nil {
				return false
			}
			v.SetLimit(n)
		}
		return true
	})
}

func (a *App) dashboard(ctx context.Context, fs *flag.FlagSet, args []string) error {
	watch := fs.Bool("watch", false, "keep the dashboard open: r to retry, q to quit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	name := ""
	if s := a.Sessions.Current(); s != nil {
		name = s.Name
	}
	return a.show(ctx, views.NewDashboardView(a.Expenses, a.Sessions.UserID(), name, a.viewOptions()), *watch, nil)
}

func (a *App) stats(ctx context.Context, fs *flag.FlagSet, args []string) error {
	watch := fs.Bool("watch", false, "keep the statistics open: r to retry, q to quit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.show(ctx, views.NewStatsView(a.Expenses, a.Sessions.UserID(), a.viewOptions()), *watch, nil)
}

func (a *App) leaderboard(ctx context.Context, fs *flag.FlagSet, args []string) error {
	watch := fs.Bool("watch", false, "keep the leaderboard open: r to retry, q to quit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.show(ctx, views.NewLeaderboardView(a.Expenses, a.viewOptions()), *watch, nil)
}

func (a *App) analytics(ctx context.Context, fs *flag.FlagSet, args []string) error {
	watch := fs.Bool("watch", false, "keep analytics open: r to retry, q to quit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.show(ctx, views.NewAnalyticsView(a.Expenses, a.viewOptions()), *watch, nil)
}

// show mounts v and renders it once loaded. With watch it re-renders on
// every cache update until the user quits; keys other than r and q go to
// onKey.
func (a *App) show(ctx context.Context, v views.View, watch bool, onKey func(string) bool) error {
	v.Mount()
	defer v.Unmount()

	if err := v.Wait(ctx); err != nil {
		return err
	}
	if err := v.Render(a.Out); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	keys := make(chan lineResult)
	go func() {
		for {
			line, err := a.Prompt.ReadLine(ctx)
			select {
			case keys <- lineResult{text: strings.ToLower(strings.TrimSpace(line)), err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-v.Updates():
			fmt.Fprintln(a.Out)
			if err := v.Render(a.Out); err != nil {
				return err
			}
		case k := <-keys:
			if k.err != nil {
				if errors.Is(k.err, io.EOF) {
					return nil
				}
				return k.err
			}
			switch k.text {
			case "q", "quit":
				return nil
			case "r", "retry":
				if err := v.Retry(ctx); err != nil {
					fmt.Fprintf(a.Err, "retry failed: %v\n", err)
				}
			default:
				if onKey == nil || !onKey(k.text) {
					fmt.Fprintln(a.Err, "keys: r retry, q quit")
				}
			}
		}
	}
}

// recognizer picks typed input, or Google speech recognition for an audio
// file.
func (a *App) recognizer(ctx context.Context, audioPath string) (voice.Recognizer, error) {
	if audioPath == "" {
		return voice.NewTextRecognizer(a.Prompt), nil
	}
	opts, err := voice.SpeechOptions(a.Config)
	if err != nil {
		return nil, err
	}
	cfg := voice.SpeechConfig{Language: a.Config.SpeechLanguage}
	switch strings.ToLower(filepath.Ext(audioPath)) {
	case ".flac":
		cfg.Encoding = "FLAC"
	case ".wav":
		cfg.Encoding = "LINEAR16"
	case ".ogg", ".opus":
		cfg.Encoding = "OGG_OPUS"
	}
	return voice.NewSpeechRecognizer(ctx, cfg, voice.FileAudio(audioPath), opts...)
}

func (a *App) voiceEntry(ctx context.Context, fs *flag.FlagSet, args []string) error {
	audio := fs.String("audio", "", "audio file to transcribe (FLAC, WAV or OGG Opus); type the sentence when empty")
	yes := fs.Bool("yes", false, "submit the transcript without asking")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rec, err := a.recognizer(ctx, *audio)
	if err != nil {
		if errors.Is(err, voice.ErrUnsupported) {
			a.Logger.WarnContext(ctx, "Speech recognition not configured", log.FieldErrorType, log.ErrorTypeUnsupported)
			return fmt.Errorf("%w: set GOOGLE_SPEECH_CREDENTIALS_FILE or GOOGLE_SPEECH_CREDENTIALS_JSON", err)
		}
		return err
	}
	m := voice.New(rec, a.Expenses, a.Sessions.UserID, a.Logger)
	defer m.Close()

	if *audio == "" {
		fmt.Fprintln(a.Out, `Say what you spent, e.g. "spent 500 on groceries yesterday".`)
	}
	if err := m.Start(ctx); err != nil {
		return err
	}
	snap, err := m.Await(ctx)
	if err != nil {
		m.Stop()
		return err
	}
	if snap.State != voice.Transcribed {
		if snap.Err != nil {
			return snap.Err
		}
		return voice.ErrNoSpeech
	}

	fmt.Fprintf(a.Out, "Heard: %q\n", snap.Transcript)
	if !*yes {
		ok, err := a.Prompt.Confirm(ctx, "Save it?", true)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.Out, "Discarded.")
			return m.Reset()
		}
	}

	for {
		_, err := m.Confirm(ctx)
		if err == nil {
			break
		}
		snap := m.Snapshot()
		if *yes || snap.State != voice.Error || snap.Transcript == "" {
			return err
		}
		fmt.Fprintf(a.Err, "Could not save it: %v\n", err)
		again, perr := a.Prompt.Confirm(ctx, "Retry?", true)
		if perr != nil {
			return perr
		}
		if !again {
			fmt.Fprintln(a.Out, "Discarded.")
			return m.Reset()
		}
	}
	fmt.Fprintln(a.Out, m.Summary(a.Config.Currency))
	return nil
}

func (a *App) upgrade(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	err := a.Payments.Upgrade(ctx)
	switch {
	case err == nil:
		fmt.Fprintln(a.Out, "Premium unlocked. The leaderboard, analytics and voice entry are now yours.")
		return nil
	case errors.Is(err, services.ErrAlreadyPremium):
		fmt.Fprintln(a.Out, "You're already on Premium.")
		return nil
	case errors.Is(err, services.ErrCheckoutCanceled):
		fmt.Fprintln(a.Out, "Checkout canceled. Your plan is unchanged.")
		return nil
	case errors.Is(err, session.ErrInvalidSession):
		return &RedirectError{Command: "upgrade", To: router.LoginPath}
	default:
		a.Logger.ErrorContext(ctx, "Upgrade failed", log.FieldError, err.Error())
		return err
	}
}

func (a *App) forgotPassword(ctx context.Context, fs *flag.FlagSet, args []string) error {
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.ask(ctx, email, "Email"); err != nil {
		return err
	}
	msg, err := a.Auth.ForgotPassword(ctx, *email)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, msg)
	return nil
}

func (a *App) resetPassword(ctx context.Context, fs *flag.FlagSet, args []string) error {
	token := fs.String("token", "", "token from the reset email")
	pw := fs.String("password", "", "new password (prompted when empty)")
	confirm := fs.String("confirm", "", "new password again (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.ask(ctx, token, "Reset token"); err != nil {
		return err
	}
	if d := a.Guard.Resolve("/reset-password/" + *token); !d.Allow {
		return &RedirectError{Command: "reset-password", To: d.Redirect}
	}
	if err := a.password(ctx, pw, "New password"); err != nil {
		return err
	}
	if err := a.password(ctx, confirm, "Confirm password"); err != nil {
		return err
	}
	msg, err := a.Auth.ResetPassword(ctx, *token, *pw, *confirm)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, msg)
	return nil
}
