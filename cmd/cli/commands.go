package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/features"
)

var jsonOutput bool

var enrollCmd = &cobra.Command{
	Use:   "enroll <user_id> <audio_file>",
	Short: "Enroll a speaker from a voice sample",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, path := args[0], args[1]
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading audio: %w", err)
		}

		svc, err := createService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		start := time.Now()
		if err := svc.Enroll(cmd.Context(), userID, data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Enrolled %s from %s in %s\n", userID, path, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var identifyCmd = &cobra.Command{
	Use:     "identify <audio_file>",
	Aliases: []string{"infer"},
	Short:   "Identify the closest enrolled speaker",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading audio: %w", err)
		}

		svc, err := createService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		res, err := svc.Infer(cmd.Context(), data)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), res)
	},
}

var featuresCmd = &cobra.Command{
	Use:   "features <audio_file>",
	Short: "Print mean pitch and energy of a recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading audio: %w", err)
		}

		svc, err := createService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		sum, err := svc.Features(cmd.Context(), data)
		if err != nil {
			return err
		}
		return printFeatures(cmd.OutOrStdout(), sum)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled speakers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := createService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		list := svc.ListEnrollments()
		out := cmd.OutOrStdout()
		if jsonOutput {
			return json.NewEncoder(out).Encode(list)
		}
		if len(list) == 0 {
			fmt.Fprintln(out, "No speakers enrolled.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tUSER\tDIMS")
		for i, e := range list {
			fmt.Fprintf(tw, "%d\t%s\t%d\n", i+1, e.UserID, e.Dimension)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nTotal: %d speaker(s)\n", len(list))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{identifyCmd, featuresCmd, listCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	}
}

type resultJSON struct {
	Label      string   `json:"label"`
	Confidence float64  `json:"confidence"`
	F0Mean     *float64 `json:"f0_mean"`
	RMS        *float64 `json:"rms"`
	Accepted   bool     `json:"accepted"`
}

func printResult(w io.Writer, res *voiceprint.InferenceResult) error {
	if jsonOutput {
		return json.NewEncoder(w).Encode(resultJSON{
			Label:      res.Label,
			Confidence: res.Confidence,
			F0Mean:     finite(res.F0Mean),
			RMS:        finite(res.RMS),
			Accepted:   res.Accepted,
		})
	}

	verdict := "rejected"
	if res.Accepted {
		verdict = "accepted"
	}
	fmt.Fprintf(w, "Speaker:    %s (%s)\n", res.Label, verdict)
	fmt.Fprintf(w, "Confidence: %.4f\n", res.Confidence)
	fmt.Fprintf(w, "Pitch:      %s\n", formatHz(res.F0Mean))
	fmt.Fprintf(w, "RMS:        %.5f\n", res.RMS)
	return nil
}

func printFeatures(w io.Writer, sum features.Summary) error {
	if jsonOutput {
		return json.NewEncoder(w).Encode(map[string]any{
			"f0_mean":       finite(sum.F0Mean),
			"rms":           finite(sum.RMS),
			"frames":        sum.Frames,
			"voiced_frames": sum.VoicedFrames,
		})
	}
	fmt.Fprintf(w, "Pitch:  %s (%d/%d frames voiced)\n", formatHz(sum.F0Mean), sum.VoicedFrames, sum.Frames)
	fmt.Fprintf(w, "RMS:    %.5f\n", sum.RMS)
	return nil
}

func formatHz(v float64) string {
	if math.IsNaN(v) {
		return "unvoiced"
	}
	return fmt.Sprintf("%.1f Hz", v)
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
