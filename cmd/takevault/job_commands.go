package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"takevault/internal/config"
	"takevault/internal/jobs"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Submit and inspect generation jobs",
	}

	jobCmd.AddCommand(newJobSubmitBatchCommand(ctx))
	jobCmd.AddCommand(newJobRegenLineCommand(ctx))
	jobCmd.AddCommand(newJobRegenSpeechCommand(ctx))
	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))

	return jobCmd
}

func withJobStore(ctx *commandContext, fn func(cfg *config.Config, store *jobs.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := jobs.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

func submitJob(cmd *cobra.Command, store *jobs.Store, kind jobs.Kind, request any, targetBatchID, targetLineKey string) error {
	encoded, err := jobs.EncodeRequest(request)
	if err != nil {
		return err
	}
	job := &jobs.Job{
		ID:            uuid.NewString(),
		Kind:          kind,
		RequestJSON:   encoded,
		TargetBatchID: targetBatchID,
		TargetLineKey: targetLineKey,
	}
	if err := store.Enqueue(cmd.Context(), job); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s job %s\n", kind, job.ID)
	return nil
}

func newJobSubmitBatchCommand(ctx *commandContext) *cobra.Command {
	var requestPath string

	cmd := &cobra.Command{
		Use:   "submit-batch",
		Short: "Queue a full batch generation job from a request file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(requestPath)
			if err != nil {
				return fmt.Errorf("read request file: %w", err)
			}
			var req jobs.BatchRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("parse request file: %w", err)
			}

			return withJobStore(ctx, func(cfg *config.Config, store *jobs.Store) error {
				if req.VariantsPerLine <= 0 {
					req.VariantsPerLine = cfg.Generation.VariantsPerLine
				}
				if err := req.Validate(); err != nil {
					return err
				}
				return submitJob(cmd, store, jobs.KindBatchGenerate, req, "", "")
			})
		},
	}

	cmd.Flags().StringVarP(&requestPath, "request", "r", "", "Path to a JSON batch request")
	_ = cmd.MarkFlagRequired("request")
	return cmd
}

func newJobRegenLineCommand(ctx *commandContext) *cobra.Command {
	var req jobs.LineRegenRequest

	cmd := &cobra.Command{
		Use:   "regen-line",
		Short: "Queue regeneration of one line from new text",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := req.Validate(); err != nil {
				return err
			}
			return withJobStore(ctx, func(_ *config.Config, store *jobs.Store) error {
				return submitJob(cmd, store, jobs.KindLineRegenText, req, req.BatchID, req.LineKey)
			})
		},
	}

	cmd.Flags().StringVar(&req.BatchID, "batch", "", "Target batch identifier (substring match)")
	cmd.Flags().StringVar(&req.LineKey, "line", "", "Line key to regenerate")
	cmd.Flags().StringVar(&req.Text, "text", "", "Script text to synthesize")
	cmd.Flags().StringVar(&req.VoiceID, "voice-id", "", "Provider voice identifier")
	cmd.Flags().IntVar(&req.Count, "count", 1, "Number of takes to generate")
	cmd.Flags().BoolVar(&req.Replace, "replace", false, "Archive and replace the line's existing takes")
	_ = cmd.MarkFlagRequired("batch")
	_ = cmd.MarkFlagRequired("line")
	_ = cmd.MarkFlagRequired("text")
	_ = cmd.MarkFlagRequired("voice-id")
	return cmd
}

func newJobRegenSpeechCommand(ctx *commandContext) *cobra.Command {
	var req jobs.SpeechRegenRequest
	var audioPath string

	cmd := &cobra.Command{
		Use:   "regen-speech",
		Short: "Queue voice conversion of reference audio for one line",
		RunE: func(cmd *cobra.Command, args []string) error {
			audio, err := os.ReadFile(audioPath)
			if err != nil {
				return fmt.Errorf("read reference audio: %w", err)
			}
			req.AudioBase64 = base64.StdEncoding.EncodeToString(audio)
			if req.MediaType == "" {
				req.MediaType = guessMediaType(audioPath)
			}
			if err := req.Validate(); err != nil {
				return err
			}
			return withJobStore(ctx, func(_ *config.Config, store *jobs.Store) error {
				return submitJob(cmd, store, jobs.KindLineRegenSpeech, req, req.BatchID, req.LineKey)
			})
		},
	}

	cmd.Flags().StringVar(&req.BatchID, "batch", "", "Target batch identifier (substring match)")
	cmd.Flags().StringVar(&req.LineKey, "line", "", "Line key to regenerate")
	cmd.Flags().StringVar(&req.VoiceID, "voice-id", "", "Provider voice identifier")
	cmd.Flags().IntVar(&req.Count, "count", 1, "Number of takes to generate")
	cmd.Flags().BoolVar(&req.Replace, "replace", false, "Archive and replace the line's existing takes")
	cmd.Flags().StringVar(&audioPath, "audio", "", "Path to the reference audio file")
	cmd.Flags().StringVar(&req.MediaType, "media-type", "", "Reference audio media type (defaults from file extension)")
	_ = cmd.MarkFlagRequired("batch")
	_ = cmd.MarkFlagRequired("line")
	_ = cmd.MarkFlagRequired("voice-id")
	_ = cmd.MarkFlagRequired("audio")
	return cmd
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job's state and result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobStore(ctx, func(_ *config.Config, store *jobs.Store) error {
				job, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("no job with id %s", args[0])
				}
				printJob(cmd, job)
				return nil
			})
		},
	}
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobStore(ctx, func(_ *config.Config, store *jobs.Store) error {
				all, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(all) == 0 {
					fmt.Fprintln(out, "No jobs found")
					return nil
				}
				rows := make([][]string, 0, len(all))
				for _, job := range all {
					rows = append(rows, []string{
						job.ID,
						string(job.Kind),
						string(job.Status),
						fmt.Sprintf("%.0f%%", job.ProgressPercent),
						job.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					})
				}
				headers := []string{"Job ID", "Kind", "Status", "Progress", "Created"}
				aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
				fmt.Fprintln(out, renderTable(headers, rows, aligns))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of jobs to list (0 for all)")
	return cmd
}

func printJob(cmd *cobra.Command, job *jobs.Job) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:      %s\n", job.ID)
	fmt.Fprintf(out, "Kind:     %s\n", job.Kind)
	fmt.Fprintf(out, "Status:   %s\n", job.Status)
	fmt.Fprintf(out, "Attempts: %d\n", job.Attempts)
	if job.TargetBatchID != "" {
		fmt.Fprintf(out, "Target:   batch %s line %s\n", job.TargetBatchID, job.TargetLineKey)
	}
	if job.Status == jobs.StatusProgress {
		fmt.Fprintf(out, "Progress: %.0f%% %s\n", job.ProgressPercent, job.ProgressMessage)
	}
	if job.ResultMessage != "" {
		fmt.Fprintf(out, "Result:   %s\n", job.ResultMessage)
	}
	if len(job.ResultBatchIDs) > 0 {
		fmt.Fprintf(out, "Batches:  %s\n", strings.Join(job.ResultBatchIDs, ", "))
	}
}

func guessMediaType(path string) string {
	switch {
	case strings.HasSuffix(path, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(path, ".ogg"):
		return "audio/ogg"
	case strings.HasSuffix(path, ".flac"):
		return "audio/flac"
	default:
		return "audio/mpeg"
	}
}
