package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"podcastai/internal/playback"
)

type openSessionRequest struct {
	PodcastID string  `json:"podcastId"`
	Rate      float64 `json:"rate"`
}

type seekRequest struct {
	Position float64 `json:"position"`
}

type rateRequest struct {
	Rate  *float64 `json:"rate"`
	Cycle bool     `json:"cycle"`
}

type skipRequest struct {
	Direction string `json:"direction"`
}

type positionRequest struct {
	Seconds float64 `json:"seconds"`
}

type engineErrorRequest struct {
	Reason string `json:"reason"`
}

// openSession answers 201 even when the audio failed to load; the snapshot
// then carries state "error" and the reason.
func (s *Server) openSession(c *fiber.Ctx) error {
	var req openSessionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.PodcastID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "podcastId required")
	}
	if req.Rate == 0 {
		req.Rate = s.defaults.PlaybackSpeed
	}

	podcast, err := s.catalog.GetPodcast(c.UserContext(), req.PodcastID)
	if err != nil {
		return err
	}

	session, err := s.sessions.Open(c.UserContext(), podcast, req.Rate)
	if session == nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(session.Snapshot())
}

func (s *Server) getSession(c *fiber.Ctx) error {
	session, err := s.sessions.Get(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(session.Snapshot())
}

func (s *Server) closeSession(c *fiber.Ctx) error {
	if err := s.sessions.Close(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// withSession runs fn against the session named in the path and answers with
// its snapshot.
func (s *Server) withSession(c *fiber.Ctx, fn func(*playback.Session) error) error {
	session, err := s.sessions.Get(c.Params("id"))
	if err != nil {
		return err
	}
	if err := fn(session); err != nil {
		return err
	}
	return c.JSON(session.Snapshot())
}

func (s *Server) play(c *fiber.Ctx) error {
	return s.withSession(c, (*playback.Session).Play)
}

func (s *Server) pause(c *fiber.Ctx) error {
	return s.withSession(c, (*playback.Session).Pause)
}

func (s *Server) seek(c *fiber.Ctx) error {
	var req seekRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return s.withSession(c, func(session *playback.Session) error {
		return session.Seek(req.Position)
	})
}

func (s *Server) skip(c *fiber.Ctx) error {
	var req skipRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return s.withSession(c, func(session *playback.Session) error {
		switch strings.ToLower(req.Direction) {
		case "forward":
			return session.SkipForward()
		case "backward":
			return session.SkipBackward()
		default:
			return fiber.NewError(fiber.StatusBadRequest, "direction must be forward or backward")
		}
	})
}

func (s *Server) setRate(c *fiber.Ctx) error {
	var req rateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return s.withSession(c, func(session *playback.Session) error {
		if req.Cycle {
			_, err := session.CycleRate()
			return err
		}
		if req.Rate == nil {
			return fiber.NewError(fiber.StatusBadRequest, "rate or cycle required")
		}
		return session.SetRate(*req.Rate)
	})
}

// reportPosition, reportEnded and reportError carry engine callbacks.
// Updates the session drops still answer 200 with the current snapshot.
func (s *Server) reportPosition(c *fiber.Ctx) error {
	var req positionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return s.withSession(c, func(session *playback.Session) error {
		session.ReportPosition(req.Seconds)
		return nil
	})
}

func (s *Server) reportEnded(c *fiber.Ctx) error {
	return s.withSession(c, func(session *playback.Session) error {
		session.ReportEnded()
		return nil
	})
}

func (s *Server) reportError(c *fiber.Ctx) error {
	var req engineErrorRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Reason == "" {
		req.Reason = "playback engine error"
	}
	return s.withSession(c, func(session *playback.Session) error {
		session.ReportError(req.Reason)
		return nil
	})
}
