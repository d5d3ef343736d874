package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	parkerrors "github.com/hrygo/parksense/internal/errors"
	"github.com/hrygo/parksense/plugin/reminder"
	"github.com/hrygo/parksense/server/service/sign"
)

// signFlags are the request flags shared by the analysis commands.
type signFlags struct {
	at       string
	duration time.Duration
	tiers    string
	quality  float64
	confirm  []int
	timeout  time.Duration
}

func (f *signFlags) register(cmd *cobra.Command, withCost bool) {
	flags := cmd.Flags()
	flags.StringVar(&f.at, "at", "", `instant to evaluate: RFC 3339, "2006-01-02 15:04" or e.g. "tomorrow at 9am" (default now)`)
	flags.Float64Var(&f.quality, "quality", 0, "OCR quality hint in (0, 1] for transcribed text")
	flags.IntSliceVar(&f.confirm, "confirm", nil, "indexes of rules you confirmed on the sign")
	flags.DurationVar(&f.timeout, "timeout", 0, "give up after this long")
	if withCost {
		flags.DurationVar(&f.duration, "duration", 0, "intended stay, e.g. 1h30m")
		flags.StringVar(&f.tiers, "tiers", "", "JSON file with rate tiers, overriding rates read off the sign")
	}
}

func (f *signFlags) request(a *app) (*sign.Request, error) {
	at, err := parseInstant(f.at, time.Now(), a.profile.Location())
	if err != nil {
		return nil, err
	}
	tiers, err := readTiers(f.tiers)
	if err != nil {
		return nil, err
	}
	return &sign.Request{
		Quality:   f.quality,
		At:        at,
		Duration:  f.duration,
		Tiers:     tiers,
		Confirmed: f.confirm,
	}, nil
}

// analyze runs one sign given as a path argument or on stdin.
func (a *app) analyze(cmd *cobra.Command, args []string, f *signFlags) (*sign.Analysis, error) {
	req, err := f.request(a)
	if err != nil {
		return nil, err
	}
	in, err := readInput(cmd.InOrStdin(), stdinOrArg(args), a.profile.OCREnabled)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(cmd.Context(), f.timeout)
	defer cancel()

	svc, err := a.newServices(ctx)
	if err != nil {
		return nil, err
	}
	defer svc.Close()
	defer a.logMetrics(svc)

	if in.isImage() {
		return svc.sign.AnalyzeImage(ctx, in.image, in.mimeType, req)
	}
	req.Text = in.text
	return svc.sign.Analyze(ctx, req)
}

func (a *app) printer() printer {
	return printer{w: a.out, loc: a.profile.Location()}
}

func newExtractCmd() *cobra.Command {
	f := &signFlags{}
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "List the parking rules written on a sign",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analysis, err := current.analyze(cmd, args, f)
			if err != nil {
				return err
			}
			if current.json {
				return printJSON(current.out, analysis.Rules)
			}
			current.printer().rules(analysis.Rules, analysis.Pending)
			return nil
		},
	}
	f.register(cmd, false)
	return cmd
}

func newEvaluateCmd() *cobra.Command {
	f := &signFlags{}
	cmd := &cobra.Command{
		Use:   "evaluate [file]",
		Short: "Tell whether parking is allowed at an instant",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analysis, err := current.analyze(cmd, args, f)
			if err != nil {
				return err
			}
			if current.json {
				return printJSON(current.out, analysis.Verdict)
			}
			current.printer().verdict(analysis.Verdict)
			return nil
		},
	}
	f.register(cmd, false)
	return cmd
}

func newCostCmd() *cobra.Command {
	f := &signFlags{}
	cmd := &cobra.Command{
		Use:   "cost [file]",
		Short: "Price a stay from the rates on a meter or a tiers file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.duration <= 0 {
				return parkerrors.InvalidArgument("--duration is required")
			}
			analysis, err := current.analyze(cmd, args, f)
			if err != nil {
				return err
			}
			if current.json {
				return printJSON(current.out, analysis.Cost)
			}
			current.printer().cost(analysis.Cost)
			return nil
		},
	}
	f.register(cmd, true)
	return cmd
}

func newSuggestCmd() *cobra.Command {
	f := &signFlags{}
	cmd := &cobra.Command{
		Use:   "suggest [file]",
		Short: "Suggest when to move the vehicle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analysis, err := current.analyze(cmd, args, f)
			if err != nil {
				return err
			}
			if current.json {
				return printJSON(current.out, analysis.Timer)
			}
			current.printer().timer(analysis.Timer)
			return nil
		},
	}
	f.register(cmd, false)
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	f := &signFlags{}
	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Extract, evaluate, price and time a sign in one go",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analysis, err := current.analyze(cmd, args, f)
			if err != nil {
				return err
			}
			if current.json {
				return printJSON(current.out, analysis)
			}
			current.printer().analysis(analysis)
			return nil
		},
	}
	f.register(cmd, true)
	return cmd
}

func newBatchCmd() *cobra.Command {
	f := &signFlags{}
	cmd := &cobra.Command{
		Use:   "batch file...",
		Short: "Analyze many signs in parallel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current
			template, err := f.request(a)
			if err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd.Context(), f.timeout)
			defer cancel()

			svc, err := a.newServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()
			defer a.logMetrics(svc)

			reqs := make([]*sign.Request, 0, len(args))
			for _, path := range args {
				in, err := readInput(cmd.InOrStdin(), path, a.profile.OCREnabled)
				if err != nil {
					return err
				}
				req := *template
				req.Text, req.Quality = in.text, template.Quality
				if in.isImage() {
					reading, err := svc.sign.ReadSign(ctx, in.image, in.mimeType)
					if err != nil {
						return err
					}
					req.Text, req.Quality = reading.Text, reading.Quality
				}
				reqs = append(reqs, &req)
			}

			results, err := svc.sign.AnalyzeBatch(ctx, reqs)
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(a.out, results)
			}
			p := a.printer()
			for i, analysis := range results {
				if i > 0 {
					fmt.Fprintln(a.out)
				}
				labelColor.Fprintf(a.out, "== %s\n", args[i])
				p.analysis(analysis)
			}
			return nil
		},
	}
	f.register(cmd, true)
	return cmd
}

func newOCRCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "ocr image",
		Short: "Transcribe a sign photo with tesseract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current
			a.profile.OCREnabled = true
			in, err := readInput(cmd.InOrStdin(), args[0], true)
			if err != nil {
				return err
			}
			if !in.isImage() {
				return parkerrors.InvalidArgument("not an image").WithContext("path", args[0])
			}

			ctx, cancel := withTimeout(cmd.Context(), timeout)
			defer cancel()

			svc, err := a.newServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			reading, err := svc.sign.ReadSign(ctx, in.image, in.mimeType)
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(a.out, reading)
			}
			labelColor.Fprintf(a.out, "quality %.2f, %d words\n", reading.Quality, reading.WordCount)
			fmt.Fprintln(a.out, reading.Text)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up after this long")
	return cmd
}

func newRemindCmd() *cobra.Command {
	f := &signFlags{}
	var (
		session string
		feed    bool
		watch   bool
	)
	cmd := &cobra.Command{
		Use:   "remind [file]",
		Short: "Schedule reminders to move the vehicle before parking ends",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current
			analysis, err := a.analyze(cmd, args, f)
			if err != nil {
				return err
			}
			if analysis.Timer == nil {
				if !analysis.Verdict.Allowed {
					return parkerrors.InvalidArgument("parking is not allowed here now")
				}
				if a.json {
					return printJSON(a.out, []*reminder.Reminder{})
				}
				a.printer().reminders(nil)
				return nil
			}

			if analysis.TimerNeedsConfirmation() {
				return parkerrors.InvalidArgument("the rule behind the timer needs confirmation, check the sign and pass --confirm").
					WithContext("pending", analysis.Pending)
			}

			dispatcher := reminder.NewNotificationDispatcher(a.logger)
			dispatcher.Register(reminder.ChannelLog, reminder.NewLogSender(a.logger))
			dispatcher.Register(reminder.ChannelTerminal, reminder.NewTerminalSender(a.out))

			reminders := reminder.NewService(reminder.NewMemoryStore(), dispatcher)
			if watch {
				reminders.SetDefaultChannels([]reminder.Channel{reminder.ChannelTerminal, reminder.ChannelLog})
			}
			scheduled, err := reminders.Schedule(cmd.Context(), session, analysis.Timer)
			if err != nil {
				return parkerrors.Wrap(err, parkerrors.ErrCodeInvalidArgument, "failed to schedule reminders")
			}

			switch {
			case feed:
				return reminders.WriteAtom(cmd.Context(), a.out)
			case watch:
				return a.watch(cmd.Context(), reminders)
			case a.json:
				return printJSON(a.out, scheduled)
			default:
				a.printer().reminders(scheduled)
				return nil
			}
		},
	}
	f.register(cmd, false)
	cmd.Flags().StringVar(&session, "session", "", "session id to group reminders (default generated)")
	cmd.Flags().BoolVar(&feed, "feed", false, "write the reminders as an Atom feed")
	cmd.Flags().BoolVar(&watch, "watch", false, "stay in the foreground and deliver reminders when due")
	return cmd
}

// watch delivers reminders until none is pending or ctx ends.
func (a *app) watch(ctx context.Context, reminders *reminder.Service) error {
	scheduler := reminder.NewScheduler(reminders, a.profile.ReminderInterval)
	scheduler.SetLogger(a.logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	ticker := time.NewTicker(a.profile.ReminderInterval)
	defer ticker.Stop()
	for {
		pending, err := reminders.Upcoming(ctx)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
