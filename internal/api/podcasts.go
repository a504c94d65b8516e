package api

import (
	"github.com/gofiber/fiber/v2"

	"podcastai/internal/domain"
)

func (s *Server) listPodcasts(c *fiber.Ctx) error {
	podcasts, err := s.catalog.ListPodcasts(c.UserContext(), c.Params("userID"))
	if err != nil {
		return err
	}
	if podcasts == nil {
		podcasts = []domain.Podcast{}
	}
	return c.JSON(podcasts)
}

func (s *Server) getPodcast(c *fiber.Ctx) error {
	podcast, err := s.catalog.GetPodcast(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(podcast)
}

// streamAudio hands the asset reader to fasthttp, which closes it once the
// body is written.
func (s *Server) streamAudio(c *fiber.Ctx) error {
	_, rc, err := s.catalog.OpenAudio(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "audio/mpeg")
	return c.SendStream(rc)
}
