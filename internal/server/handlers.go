package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mmdrender "github.com/alnah/go-mmdrender"
)

// Messages for failures detected before the pipeline runs.
const (
	msgInvalidBody   = "invalid request body"
	msgBodyTooLarge  = "request body too large"
	msgRateLimited   = "rate limit exceeded"
	msgInternalError = "internal error"
)

// renderRequest is the POST /render body. Pointers tell a missing field from
// a zero value.
type renderRequest struct {
	Text   *string  `json:"text"`
	Format string   `json:"format"`
	Scale  *float64 `json:"scale"`
}

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	Message string `json:"message"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) render(c *gin.Context) {
	var body renderRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Message: msgBodyTooLarge})
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse{Message: msgInvalidBody})
		return
	}
	if body.Text == nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: msgInvalidBody})
		return
	}

	req, err := toRequest(body)
	if err != nil {
		s.fail(c, err)
		return
	}

	res, err := s.renderer.Render(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}

	// Pixel size of the PNG body, scale included.
	if req.Format == mmdrender.FormatPNG {
		c.Header("X-Image-Width", strconv.Itoa(res.Width))
		c.Header("X-Image-Height", strconv.Itoa(res.Height))
	}
	c.Data(http.StatusOK, res.ContentType, res.Data)
}

// toRequest validates the wire fields. An explicit scale must be positive;
// only an absent one falls back to the default.
func toRequest(body renderRequest) (mmdrender.Request, error) {
	format, err := mmdrender.ParseFormat(body.Format)
	if err != nil {
		return mmdrender.Request{}, err
	}

	scale := mmdrender.DefaultScale
	if body.Scale != nil {
		scale = *body.Scale
		if math.IsNaN(scale) || scale <= 0 {
			return mmdrender.Request{}, mmdrender.ErrInvalidScale
		}
	}

	req := mmdrender.Request{Text: *body.Text, Format: format, Scale: scale}
	return req, req.Validate()
}

// fail answers 400 with the step message. All pipeline failures are client
// visible as 400; the kind goes to the log.
func (s *Server) fail(c *gin.Context, err error) {
	kind := mmdrender.KindOf(err)
	s.log.Info("render rejected",
		zap.String("request_id", requestIDFrom(c)),
		zap.String("kind", string(kind)),
		zap.Error(err))
	c.JSON(http.StatusBadRequest, errorResponse{Message: mmdrender.Message(err)})
}
