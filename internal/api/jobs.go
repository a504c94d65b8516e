package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"podcastai/internal/domain"
)

const defaultListLimit = 20

// submitJobRequest shadows Length with a pointer so an omitted length takes
// the default while an explicit zero still fails validation.
type submitJobRequest struct {
	domain.PodcastRequest
	Length *int `json:"length"`
}

func (s *Server) submitJob(c *fiber.Ctx) error {
	var body submitJobRequest
	if err := parseBody(c, &body); err != nil {
		return err
	}
	req := body.PodcastRequest
	req.Length = s.defaults.DefaultLength()
	if body.Length != nil {
		req.Length = *body.Length
	}
	s.defaults.ApplyDefaults(&req)

	id, err := s.jobs.Submit(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": id})
}

func (s *Server) getJob(c *fiber.Ctx) error {
	job, err := s.jobs.Status(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(job)
}

// cancelJob answers 200 with cancelled=false when the job had already
// finished; that is not an error for the caller.
func (s *Server) cancelJob(c *fiber.Ctx) error {
	err := s.jobs.Cancel(c.UserContext(), c.Params("id"))
	switch {
	case errors.Is(err, domain.ErrAlreadyTerminal):
		return c.JSON(fiber.Map{"cancelled": false, "reason": err.Error()})
	case err != nil:
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"cancelled": true})
}

func (s *Server) listJobs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be positive")
	}

	jobs, err := s.jobs.ListJobs(c.UserContext(), c.Params("userID"), limit)
	if err != nil {
		return err
	}
	if jobs == nil {
		jobs = []domain.GenerationJob{}
	}
	return c.JSON(jobs)
}
