package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"plantcareapi/pkg/client"
	"plantcareapi/pkg/identifyflow"
	"plantcareapi/pkg/schemas"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// stateView renders controller states on the terminal.
type stateView struct {
	spinner *pterm.SpinnerPrinter
	waiting bool
	waited  bool
}

func (v *stateView) stop() {
	if v.spinner != nil {
		_ = v.spinner.Stop()
		v.spinner = nil
	}
	if v.waiting {
		v.waiting, v.waited = false, true
	}
}

func (v *stateView) show(s identifyflow.State) {
	switch s := s.(type) {
	case identifyflow.Idle:
		v.stop()
	case identifyflow.Compressing:
		v.stop()
		v.spinner, _ = pterm.DefaultSpinner.Start("Bild wird komprimiert...")
	case identifyflow.Loading:
		v.stop()
		v.spinner, _ = pterm.DefaultSpinner.Start("Pflanze wird erkannt...")
	case identifyflow.Results:
		v.stop()
	case identifyflow.NoResults:
		v.stop()
		pterm.Warning.Println("Keine Pflanze erkannt. Versuche ein anderes Foto.")
	case identifyflow.Error:
		if s.RetryAfter > 0 {
			text := fmt.Sprintf("%s Warten (%ds)", s.Message, s.RetryAfter)
			if v.spinner != nil && v.waiting {
				v.spinner.UpdateText(text)
				return
			}
			v.stop()
			v.spinner, _ = pterm.DefaultSpinner.Start(text)
			v.waiting = true
			return
		}
		v.stop()
		if s.CanRetry && v.waited {
			v.waited = false
			pterm.Info.Println("Erneuter Versuch...")
			return
		}
		pterm.Error.Println(s.Message)
	}
}

func confidenceStyle(confidence int) *pterm.Style {
	switch identifyflow.Level(confidence) {
	case identifyflow.ConfidenceHigh:
		return pterm.NewStyle(pterm.FgGreen)
	case identifyflow.ConfidenceMedium:
		return pterm.NewStyle(pterm.FgYellow)
	}
	return pterm.NewStyle(pterm.FgRed)
}

func renderResults(results identifyflow.Results) {

	if results.LowConfidence {
		pterm.Warning.Println("Alle Vorschläge sind unsicher. Prüfe das Ergebnis.")
	}

	data := pterm.TableData{{"#", "Name", "Art", "Sicherheit"}}
	for i, s := range results.Suggestions {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			s.Name,
			s.Species,
			confidenceStyle(s.Confidence).Sprintf("%d%%", s.Confidence),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()

}

// identify runs one identification and, when pick > 0, selects that
// suggestion. It waits out a rate limit countdown and retries once.
func identify(ctx context.Context, c *client.Client, path string, pick int, onSelect func(schemas.IdentifySuggestion), onPhoto func([]byte)) (identifyflow.State, error) {

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	view := &stateView{}
	countdown := make(chan struct{}, 1)
	ctl := identifyflow.New(identifyflow.Options{
		Gateway:      c,
		Logger:       c.Logger,
		OnPhotoReady: onPhoto,
		OnSelect:     onSelect,
		OnState: func(s identifyflow.State) {
			view.show(s)
			if e, ok := s.(identifyflow.Error); ok && e.CanRetry && e.RetryAfter == 0 {
				select {
				case countdown <- struct{}{}:
				default:
				}
			}
		},
	})
	defer view.stop()

	state := ctl.SelectFile(ctx, file)
	if e, ok := state.(identifyflow.Error); ok && e.RetryAfter > 0 {
		select {
		case <-countdown:
		case <-ctx.Done():
			return state, ctx.Err()
		}
		if state, err = ctl.Retry(ctx); err != nil {
			return state, err
		}
	}

	results, ok := state.(identifyflow.Results)
	if !ok {
		return state, nil
	}
	renderResults(results)

	if pick > 0 {
		if !ctl.SelectSuggestion(pick - 1) {
			return state, fmt.Errorf("no suggestion %d", pick)
		}
		pterm.Success.Printf("Vorschlag %d übernommen\n", pick)
	}

	return state, nil

}

func newIdentifyCmd(flags *globalFlags) *cobra.Command {

	var pick int

	cmd := &cobra.Command{
		Use:   "identify <image>",
		Short: "Identify a plant from a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := session(ctx, flags)
			if err != nil {
				return err
			}

			state, err := identify(ctx, c, args[0], pick, func(s schemas.IdentifySuggestion) {
				pterm.Info.Printf("Name: %s, Art: %s\n", s.Name, s.Species)
			}, nil)
			if err != nil {
				return err
			}
			if e, ok := state.(identifyflow.Error); ok {
				return fmt.Errorf("identification failed: %s", e.Message)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&pick, "pick", 0, "Select suggestion N (1-based)")

	return cmd

}
