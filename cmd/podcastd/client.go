package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	"podcastai/internal/domain"
)

const clientTimeout = 30 * time.Second

type apiClient struct {
	baseURL string
}

func (c apiClient) do(agent *fiber.Agent, out any) error {
	code, body, errs := agent.Timeout(clientTimeout).Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if code >= fiber.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", code, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", code)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// submitPayload drops an unset length so the server applies its default.
type submitPayload struct {
	domain.PodcastRequest
	Length int `json:"length,omitempty"`
}

func (c apiClient) submit(req domain.PodcastRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	payload := submitPayload{PodcastRequest: req, Length: req.Length}
	if err := c.do(fiber.Post(c.baseURL+"/v1/jobs").JSON(payload), &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c apiClient) status(jobID string) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	if err := c.do(fiber.Get(c.baseURL+"/v1/jobs/"+jobID), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func addServerFlag(cmd *cobra.Command, server *string) {
	cmd.Flags().StringVar(server, "server", "http://localhost:8080", "podcastd API base URL")
}

func newSubmitCommand() *cobra.Command {
	var (
		server string
		req    domain.PodcastRequest
		style  string
		wait   bool
	)

	cmd := &cobra.Command{
		Use:   "submit <topic>",
		Short: "Request a new podcast",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Topic = strings.Join(args, " ")
			req.Style = domain.Style(style)
			client := apiClient{baseURL: strings.TrimRight(server, "/")}

			id, err := client.submit(req)
			if err != nil {
				return err
			}
			cmd.Printf("job %s queued\n", id)
			if !wait {
				return nil
			}

			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			last := domain.JobQueued
			for {
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-ticker.C:
				}
				job, err := client.status(id)
				if err != nil {
					return err
				}
				if job.State != last {
					cmd.Printf("job %s %s\n", id, job.State)
					last = job.State
				}
				if job.State.IsTerminal() {
					return printJob(cmd.OutOrStdout(), job)
				}
			}
		},
	}

	addServerFlag(cmd, &server)
	cmd.Flags().StringVar(&req.UserID, "user", "", "user id")
	cmd.Flags().IntVar(&req.Length, "length", 0, "length in minutes (server default when 0)")
	cmd.Flags().StringVar(&req.Language, "language", "", "BCP 47 language code")
	cmd.Flags().StringVar(&req.VoiceID, "voice", "", "voice id")
	cmd.Flags().StringVar(&style, "style", "", "conversational or formal")
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the job finishes")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newStatusCommand() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a generation job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiClient{baseURL: strings.TrimRight(server, "/")}
			job, err := client.status(args[0])
			if err != nil {
				return err
			}
			return printJob(cmd.OutOrStdout(), job)
		},
	}

	addServerFlag(cmd, &server)
	return cmd
}

func printJob(w io.Writer, job *domain.GenerationJob) error {
	lines := []string{
		fmt.Sprintf("id:      %s", job.ID),
		fmt.Sprintf("user:    %s", job.Request.UserID),
		fmt.Sprintf("topic:   %s", job.Request.Topic),
		fmt.Sprintf("state:   %s", job.State),
		fmt.Sprintf("updated: %s", job.UpdatedAt.Format(time.RFC3339)),
	}
	if job.PodcastID != nil {
		lines = append(lines, fmt.Sprintf("podcast: %s", *job.PodcastID))
	}
	if job.Duration > 0 {
		lines = append(lines, fmt.Sprintf("length:  %s", domain.FormatClock(job.Duration)))
	}
	if job.Error != nil {
		lines = append(lines, fmt.Sprintf("error:   %s", *job.Error))
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}
