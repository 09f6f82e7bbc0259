package server

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zijiren233/flvplay/codec"
	"github.com/zijiren233/flvplay/loader"
	"github.com/zijiren233/flvplay/netstream"
	"github.com/zijiren233/flvplay/utils"
	"golang.org/x/image/draw"
)

const maxFrameSide = 4096

var ErrNoFrame = errors.New("no frame decoded yet")

// Handler returns the HTTP control API.
func (s *Server) Handler() http.Handler {
	e := gin.New()
	e.Use(gin.Recovery())
	if s.cors {
		utils.Cors(e)
	}
	s.RegisterRoutes(e)
	return e
}

func (s *Server) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/sessions")
	g.GET("", s.listSessions)
	g.GET("/:name", s.withSession(s.getSession))
	g.GET("/:name/frame.png", s.withSession(s.getFrame))
	g.POST("/:name/play", s.playSession)
	g.POST("/:name/pause", s.withSession(s.pauseSession))
	g.POST("/:name/seek", s.withSession(s.seekSession))
	g.POST("/:name/volume", s.withSession(s.volumeSession))
	g.POST("/:name/close", s.closeSession)
}

func abort(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{
		"error": err.Error(),
	})
}

func (s *Server) withSession(h func(*gin.Context, *Session)) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := s.GetSession(c.Param("name"))
		if err != nil {
			abort(c, http.StatusNotFound, err)
			return
		}
		h(c, sess)
	}
}

func (s *Server) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions": s.Sessions(),
		"ingests":  s.Ingests(),
	})
}

func (s *Server) getSession(c *gin.Context, sess *Session) {
	c.JSON(http.StatusOK, sess.Info())
}

type playRequest struct {
	URL        string   `json:"url" binding:"required"`
	BufferTime *float64 `json:"buffer_time"`
}

// playSession creates the session on first use.
func (s *Server) playSession(c *gin.Context) {
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	sess := s.GetOrNewSession(c.Param("name"))
	if req.BufferTime != nil {
		sess.Stream().SetBufferTime(*req.BufferTime)
	}
	if err := sess.Play(req.URL); err != nil {
		switch {
		case errors.Is(err, codec.ErrNoDecoder):
			abort(c, http.StatusUnsupportedMediaType, err)
		case errors.Is(err, fs.ErrNotExist), errors.Is(err, ErrIngestNotFound), errors.Is(err, loader.ErrUnsupportedURL):
			abort(c, http.StatusNotFound, err)
		default:
			abort(c, http.StatusBadGateway, err)
		}
		return
	}
	c.JSON(http.StatusOK, sess.Info())
}

type pauseRequest struct {
	Mode string `json:"mode"`
}

var pauseModes = map[string]netstream.PauseMode{
	"":        netstream.PauseToggle,
	"toggle":  netstream.PauseToggle,
	"pause":   netstream.PausePause,
	"unpause": netstream.PauseUnpause,
}

func (s *Server) pauseSession(c *gin.Context, sess *Session) {
	var req pauseRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
	}
	mode, ok := pauseModes[req.Mode]
	if !ok {
		abort(c, http.StatusBadRequest, errors.New("unknown pause mode: "+req.Mode))
		return
	}
	if err := sess.Pause(mode); err != nil {
		abort(c, http.StatusGone, err)
		return
	}
	c.JSON(http.StatusOK, sess.Info())
}

type seekRequest struct {
	// Time is the target position in milliseconds.
	Time *uint32 `json:"time" binding:"required"`
}

func (s *Server) seekSession(c *gin.Context, sess *Session) {
	var req seekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if err := sess.Seek(*req.Time); err != nil {
		switch {
		case errors.Is(err, ErrClosed):
			abort(c, http.StatusGone, err)
		case errors.Is(err, netstream.ErrNotPlaying):
			abort(c, http.StatusConflict, err)
		default:
			abort(c, http.StatusUnprocessableEntity, err)
		}
		return
	}
	c.JSON(http.StatusOK, sess.Info())
}

type volumeRequest struct {
	Volume *int `json:"volume" binding:"required"`
}

func (s *Server) volumeSession(c *gin.Context, sess *Session) {
	var req volumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	sess.Stream().SetVolume(*req.Volume)
	c.JSON(http.StatusOK, sess.Info())
}

func (s *Server) closeSession(c *gin.Context) {
	if err := s.DelSession(c.Param("name")); err != nil {
		abort(c, http.StatusNotFound, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// getFrame encodes the current picture as PNG, scaled when width or
// height is given. A missing side keeps the aspect ratio.
func (s *Server) getFrame(c *gin.Context, sess *Session) {
	f := sess.Stream().VideoFrame()
	if f == nil {
		abort(c, http.StatusNotFound, ErrNoFrame)
		return
	}
	src := f.Image
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	qw, _ := strconv.Atoi(c.Query("width"))
	qh, _ := strconv.Atoi(c.Query("height"))
	switch {
	case qw > 0 && qh > 0:
		w, h = qw, qh
	case qw > 0:
		w, h = qw, max(1, h*qw/w)
	case qh > 0:
		w, h = max(1, w*qh/h), qh
	}
	if w > maxFrameSide || h > maxFrameSide {
		abort(c, http.StatusBadRequest, errors.New("frame size too large"))
		return
	}

	var img image.Image = src
	if w != src.Bounds().Dx() || h != src.Bounds().Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		img = dst
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.Header("X-Frame-Timestamp", strconv.FormatUint(uint64(f.TimeStamp), 10))
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
