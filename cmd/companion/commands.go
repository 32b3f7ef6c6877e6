package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/companion/api/client"
	"github.com/fastygo/companion/api/transport"
	"github.com/fastygo/companion/domain"
)

type whoami struct {
	User     *domain.User `json:"user"`
	NextStep string       `json:"nextStep"`
}

type deferredResult struct {
	Queued bool            `json:"queued"`
	Result json.RawMessage `json:"result,omitempty"`
}

func (a *app) registerCommands() {
	d := a.dispatcher

	d.RegisterCommand("login", "login <email> <password>", a.login)
	d.RegisterCommand("signup", "signup <name> <email> <password>", a.signup)
	d.RegisterCommand("logout", "logout", func(ctx context.Context, _ []string) (any, error) {
		if err := a.auth.Logout(ctx); err != nil {
			return nil, err
		}
		return "signed out", nil
	})
	d.RegisterCommand("update-profile", "update-profile [-name n] [-age a] [-gender g] [-bio b] [-image path]", a.updateProfile)
	d.RegisterCommand("assessment", "assessment [-defer] [-file answers.json] [question=answer ...]", a.submitAssessment)
	d.RegisterCommand("audio", "audio <recording>", a.analyzeAudio)
	d.RegisterCommand("chat", "chat <message>", func(ctx context.Context, args []string) (any, error) {
		return a.chat.SendMessage(ctx, strings.Join(args, " ")), nil
	})
	d.RegisterCommand("sync", "sync [-once]", a.sync)

	d.RegisterQuery("whoami", "whoami", a.whoami)
	d.RegisterQuery("profile", "profile", func(ctx context.Context, _ []string) (any, error) {
		return a.profile.GetUserProfile(ctx)
	})
	d.RegisterQuery("health", "health", func(ctx context.Context, _ []string) (any, error) {
		return a.chat.HealthCheck(ctx)
	})
}

func (a *app) login(ctx context.Context, args []string) (any, error) {
	if len(args) != 2 {
		return nil, usageError("login <email> <password>")
	}
	user, err := a.auth.LoginUser(ctx, args[0], args[1])
	if err != nil {
		return nil, err
	}
	return whoami{User: redact(user), NextStep: user.NextStep()}, nil
}

func (a *app) signup(ctx context.Context, args []string) (any, error) {
	if len(args) != 3 {
		return nil, usageError("signup <name> <email> <password>")
	}
	user, err := a.auth.SignupUser(ctx, args[0], args[1], args[2])
	if err != nil {
		return nil, err
	}
	return whoami{User: redact(user), NextStep: user.NextStep()}, nil
}

func (a *app) whoami(ctx context.Context, _ []string) (any, error) {
	user, err := a.sessions.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsSignedIn() {
		return "not signed in", nil
	}
	return whoami{User: redact(user), NextStep: user.NextStep()}, nil
}

func (a *app) updateProfile(ctx context.Context, args []string) (any, error) {
	fs := flag.NewFlagSet("update-profile", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	var update transport.ProfileUpdate
	fs.StringVar(&update.Name, "name", "", "display name")
	fs.StringVar(&update.Age, "age", "", "age")
	fs.StringVar(&update.Gender, "gender", "", "gender")
	fs.StringVar(&update.Bio, "bio", "", "short bio")
	image := fs.String("image", "", "path to a profile picture")
	if err := fs.Parse(args); err != nil {
		return nil, usageError("update-profile [-name n] [-age a] [-gender g] [-bio b] [-image path]")
	}

	if *image != "" {
		att, closeFn, err := openAttachment(*image)
		if err != nil {
			return nil, err
		}
		defer closeFn()
		update.Image = &att
	}

	user, err := a.profile.UpdateUserProfile(ctx, update, a.progress())
	if err != nil {
		return nil, err
	}
	return whoami{User: redact(user), NextStep: user.NextStep()}, nil
}

func (a *app) submitAssessment(ctx context.Context, args []string) (any, error) {
	fs := flag.NewFlagSet("assessment", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	file := fs.String("file", "", "JSON object of answers")
	deferred := fs.Bool("defer", false, "queue the submission when the backend is unreachable")
	if err := fs.Parse(args); err != nil {
		return nil, usageError("assessment [-defer] [-file answers.json] [question=answer ...]")
	}

	answers, err := parseAnswers(*file, fs.Args())
	if err != nil {
		return nil, err
	}

	if !*deferred {
		return a.assessment.SubmitAssessment(ctx, answers)
	}
	result, queued, err := a.assessment.SubmitDeferred(ctx, answers)
	if err != nil {
		return nil, err
	}
	return deferredResult{Queued: queued, Result: result}, nil
}

func (a *app) analyzeAudio(ctx context.Context, args []string) (any, error) {
	if len(args) != 1 {
		return nil, usageError("audio <recording>")
	}
	att, closeFn, err := openAttachment(args[0])
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return a.assessment.SubmitAudioAnalysis(ctx, att, a.progress())
}

func (a *app) sync(ctx context.Context, args []string) (any, error) {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	once := fs.Bool("once", false, "drain one batch and exit")
	if err := fs.Parse(args); err != nil {
		return nil, usageError("sync [-once]")
	}

	if *once {
		a.monitor.Refresh(ctx)
		if err := a.processor.Drain(ctx); err != nil {
			return nil, err
		}
		return a.monitor.Refresh(ctx), nil
	}

	a.monitor.Start()
	a.manager.Register("monitor", func(context.Context) error {
		a.monitor.Stop()
		return nil
	})
	a.processor.Start()
	a.manager.Register("outbox_processor", func(ctx context.Context) error {
		a.processor.Stop(ctx)
		return nil
	})

	a.logger.Info("syncing outbox until interrupted")
	<-ctx.Done()
	return a.monitor.GetStatus(), nil
}

func (a *app) progress() client.ProgressFunc {
	if a.stderr == nil {
		return nil
	}
	return func(sent, total int64) {
		if total <= 0 {
			return
		}
		fmt.Fprintf(a.stderr, "\ruploading %3d%%", sent*100/total)
		if sent >= total {
			fmt.Fprintln(a.stderr)
		}
	}
}

// parseAnswers merges answers from an optional JSON file with key=value
// arguments. Values that parse as JSON keep their type.
func parseAnswers(file string, pairs []string) (map[string]any, error) {
	answers := make(map[string]any)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, domain.WrapError(domain.ErrCodeInvalid, "cannot read answers file", err)
		}
		if err := json.Unmarshal(data, &answers); err != nil {
			return nil, domain.WrapError(domain.ErrCodeInvalid, "answers file must hold a JSON object", err)
		}
	}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("answer %q is not question=answer", pair))
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		answers[key] = value
	}
	return answers, nil
}

func openAttachment(path string) (transport.Attachment, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return transport.Attachment{}, nil, domain.WrapError(domain.ErrCodeInvalid, "cannot open "+path, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	att := transport.Attachment{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Content:     f,
	}
	return att, func() { _ = f.Close() }, nil
}

func redact(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	out := user.Clone()
	out.Token = ""
	return out
}

func usageError(usage string) error {
	return domain.NewError(domain.ErrCodeInvalid, "usage: "+usage)
}

// printResult writes strings as-is and everything else as indented JSON.
func printResult(w io.Writer, logger *zap.Logger, v any) {
	switch out := v.(type) {
	case nil:
		return
	case string:
		fmt.Fprintln(w, out)
	case transport.ChatResult:
		fmt.Fprintln(w, out.BotResponse)
		if !out.Success {
			logger.Warn("chat fell back", zap.String("reason", out.Error))
		}
	default:
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			logger.Error("cannot encode result", zap.Error(err))
			return
		}
		fmt.Fprintln(w, string(data))
	}
}
