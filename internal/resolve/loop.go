package resolve

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/gavel-review/gavel/internal/review"
	"github.com/gavel-review/gavel/internal/session"
)

// Action is a user decision for one finding.
type Action int

const (
	ActionResolve Action = iota + 1
	ActionIgnore
	ActionFix
	ActionView
	ActionSkip
	ActionQuit
)

// Actor supplies user decisions to the loop. Abstracted so the loop can be
// driven by tests as well as a terminal.
type Actor interface {
	// Choose presents one finding and returns the selected action.
	Choose(f review.Finding, index, total int) (Action, error)
	// IgnoreReason collects the justification for an ignore.
	IgnoreReason() (string, error)
	// ConfirmFix shows a fix preview and asks whether to apply it.
	ConfirmFix(preview string) (bool, error)
	// ShowCode displays the finding's source context.
	ShowCode(f review.Finding, code string)
	// Notify reports loop events (fix failures, invalid input).
	Notify(message string)
}

// Loop walks the pending findings, applying the actor's decisions through
// the state machine. Findings are mutated in place; the loop stops early on
// ActionQuit or context cancellation and already-made decisions stand.
func Loop(ctx context.Context, findings []review.Finding, fixer *Fixer, sess *session.Session, actor Actor) error {
	pending := 0
	for i := range findings {
		if findings[i].Status == review.StatusPending {
			pending++
		}
	}

	shown := 0
	for i := range findings {
		f := &findings[i]
		if f.Status != review.StatusPending {
			continue
		}
		shown++

		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			action, err := actor.Choose(*f, shown, pending)
			if err != nil {
				return err
			}

			switch action {
			case ActionResolve:
				if err := Resolve(f); err != nil {
					actor.Notify(err.Error())
					continue
				}
			case ActionIgnore:
				reason, err := actor.IgnoreReason()
				if err != nil {
					return err
				}
				if err := Ignore(f, reason); err != nil {
					actor.Notify(err.Error())
					continue
				}
			case ActionFix:
				if err := runFix(ctx, f, fixer, actor); err != nil {
					actor.Notify(err.Error())
					continue
				}
			case ActionView:
				code, err := sess.Content(f.Path)
				if err != nil {
					actor.Notify("cannot read " + f.Path + ": " + err.Error())
					continue
				}
				window, _ := Snippet(code, f.Line, 10)
				actor.ShowCode(*f, Highlight(f.Path, window))
				continue // re-prompt the same finding
			case ActionSkip:
				if err := Skip(f); err != nil {
					actor.Notify(err.Error())
					continue
				}
			case ActionQuit:
				return nil
			default:
				actor.Notify("unrecognized choice")
				continue
			}
			break // decision made, next finding
		}
	}
	return nil
}

func runFix(ctx context.Context, f *review.Finding, fixer *Fixer, actor Actor) error {
	if fixer == nil {
		return errors.New("no AI backend available for fix generation")
	}
	fixed, err := fixer.Generate(ctx, f)
	if err != nil {
		return err
	}
	if err := ProposeFix(f, fixed); err != nil {
		return err
	}
	preview, err := fixer.Preview(f)
	if err != nil {
		return err
	}
	apply, err := actor.ConfirmFix(preview)
	if err != nil {
		return err
	}
	if !apply {
		return CancelFix(f)
	}
	return fixer.Apply(f)
}

// Console is the terminal Actor: pterm panels for display, line input for
// decisions, matching the numbered-menu workflow.
type Console struct {
	reader *bufio.Reader
}

// NewConsole creates a Console reading decisions from r.
func NewConsole(r io.Reader) *Console {
	return &Console{reader: bufio.NewReader(r)}
}

var severityPrinters = map[review.Severity]*pterm.PrefixPrinter{
	review.SeverityCritical: &pterm.Error,
	review.SeverityHigh:     &pterm.Error,
	review.SeverityMedium:   &pterm.Warning,
	review.SeverityLow:      &pterm.Info,
	review.SeverityInfo:     &pterm.Info,
}

func (c *Console) Choose(f review.Finding, index, total int) (Action, error) {
	pterm.DefaultSection.Printf("Finding %d of %d", index, total)
	printer := severityPrinters[f.Severity]
	if printer == nil {
		printer = &pterm.Info
	}
	location := f.Path
	if f.Line > 0 {
		location = fmt.Sprintf("%s:%d", f.Path, f.Line)
	}
	printer.Printf("[%s] %s (%s)", strings.ToUpper(string(f.Severity)), f.Title, location)
	pterm.Println(f.Description)
	if f.Suggestion != "" {
		pterm.Println(pterm.Gray("Suggestion: " + f.Suggestion))
	}

	pterm.Println("\n1) resolve  2) ignore  3) AI fix  4) view code  5) skip  q) quit")
	for {
		pterm.Print("> ")
		line, err := c.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return ActionQuit, nil
			}
			return 0, err
		}
		switch strings.TrimSpace(line) {
		case "1":
			return ActionResolve, nil
		case "2":
			return ActionIgnore, nil
		case "3":
			return ActionFix, nil
		case "4":
			return ActionView, nil
		case "5":
			return ActionSkip, nil
		case "q", "quit":
			return ActionQuit, nil
		default:
			pterm.Warning.Println("enter 1-5 or q")
		}
	}
}

func (c *Console) IgnoreReason() (string, error) {
	pterm.Print("Reason for ignoring: ")
	line, err := c.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *Console) ConfirmFix(preview string) (bool, error) {
	pterm.DefaultBox.WithTitle("Proposed fix").Println(preview)
	pterm.Print("Apply this fix? [y/N] ")
	line, err := c.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func (c *Console) ShowCode(f review.Finding, code string) {
	title := f.Path
	if f.Line > 0 {
		title = fmt.Sprintf("%s around line %d", f.Path, f.Line)
	}
	pterm.DefaultBox.WithTitle(title).Println(code)
}

func (c *Console) Notify(message string) {
	pterm.Warning.Println(message)
}
