// Package devserver is an in-memory implementation of the item collection
// resource. It backs `posts serve` and the client tests.
package devserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/idilsaglam/posts/internal/model"
)

const maxBodySize = 64 << 10

type listResponse struct {
	Items []model.Item `json:"items"`
}

type itemResponse struct {
	Item model.Item `json:"item"`
}

type attachmentRequest struct {
	AttachmentURL string `json:"attachmentUrl"`
}

// AttachmentStore is implemented by stores that can record uploaded images.
type AttachmentStore interface {
	SetAttachment(userID, id, url string) error
}

// New returns an echo instance serving /<resource>.
func New(resource string, store Store, auth Authenticator, logger *log.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	Register(e, resource, store, auth, logger)
	return e
}

// Register wires the collection routes on e.
func Register(e *echo.Echo, resource string, store Store, auth Authenticator, logger *log.Logger) {
	base := "/" + strings.Trim(resource, "/")
	e.GET(base, listItems(store, auth))
	e.POST(base, createItem(store, auth, logger))
	e.PATCH(base+"/:id", updateItem(store, auth, logger))
	e.DELETE(base+"/:id", deleteItem(store, auth, logger))
	if as, ok := store.(AttachmentStore); ok {
		e.POST(base+"/:id/attachment", setAttachment(as, auth))
	}
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
}

// Run serves until ctx is cancelled.
func Run(ctx context.Context, e *echo.Echo, addr string) error {
	errc := make(chan error, 1)
	go func() { errc <- e.Start(addr) }()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return e.Shutdown(context.Background())
	}
}

func decodeBody(c echo.Context, v any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, maxBodySize))
	return dec.Decode(v)
}

func listItems(store Store, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		return c.JSON(http.StatusOK, listResponse{Items: store.List(userID)})
	}
}

func createItem(store Store, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req model.CreateRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			return c.String(http.StatusBadRequest, "name is required")
		}
		it := store.Create(userID, req)
		logger.WithFields(log.Fields{"user": userID, "id": it.ID}).Info("item created")
		return c.JSON(http.StatusCreated, itemResponse{Item: it})
	}
}

func updateItem(store Store, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req model.UpdateRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.Upvote < 0 || req.Downvote < 0 {
			return c.String(http.StatusBadRequest, "vote counters must not be negative")
		}
		id := c.Param("id")
		if err := store.Update(userID, id, req); err != nil {
			if errors.Is(err, ErrNotFound) {
				return c.String(http.StatusNotFound, err.Error())
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		logger.WithFields(log.Fields{"user": userID, "id": id}).Debug("item updated")
		return c.NoContent(http.StatusNoContent)
	}
}

func deleteItem(store Store, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		id := c.Param("id")
		if err := store.Delete(userID, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return c.String(http.StatusNotFound, err.Error())
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		logger.WithFields(log.Fields{"user": userID, "id": id}).Info("item deleted")
		return c.NoContent(http.StatusNoContent)
	}
}

func setAttachment(store AttachmentStore, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req attachmentRequest
		if err := decodeBody(c, &req); err != nil || strings.TrimSpace(req.AttachmentURL) == "" {
			return c.String(http.StatusBadRequest, "attachmentUrl is required")
		}
		if err := store.SetAttachment(userID, c.Param("id"), req.AttachmentURL); err != nil {
			if errors.Is(err, ErrNotFound) {
				return c.String(http.StatusNotFound, err.Error())
			}
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, req)
	}
}
