package httpapi

import (
	"context"
	"errors"
	"itemsvc/pkg/httperror"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

type Request any
type Response any

type HandlerInterface[R Request, Res Response] interface {
	Handle(ctx context.Context, req *R) (*Res, error)
}

// handle adapts a typed handler to fiber: it fills R from the JSON body and
// path params, runs the handler and writes the result with the given success status.
func handle[R Request, Res Response](handler HandlerInterface[R, Res], status int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req R

		if err := decodeBody(c, &req); err != nil {
			return writeError(c, err)
		}

		if err := c.ParamsParser(&req); err != nil {
			return writeError(c, httperror.UnprocessableEntity(
				"request.invalid_path_params",
				"Invalid path params",
				[]httperror.FieldError{{
					Loc:  []string{"path"},
					Msg:  err.Error(),
					Type: "int_parsing",
				}},
			))
		}

		ctx := c.UserContext()

		res, err := handler.Handle(ctx, &req)
		if err != nil {
			return writeError(c, err)
		}

		return c.Status(status).JSON(res)
	}
}

// decodeBody fills req from a JSON body. GET bodies are ignored, and an empty
// body leaves req zeroed for validation to report missing fields. A body with
// no Content-Type is read as JSON.
func decodeBody(c *fiber.Ctx, req any) error {
	body := c.Body()
	if c.Method() == fiber.MethodGet || len(body) == 0 {
		return nil
	}

	if !utf8.Valid(body) {
		return invalidBody("Invalid UTF-8 in request body", "json_invalid")
	}

	ctype := utils.ToLower(utils.UnsafeString(c.Request().Header.ContentType()))
	ctype = utils.ParseVendorSpecificContentType(ctype)
	if i := strings.IndexByte(ctype, ';'); i >= 0 {
		ctype = ctype[:i]
	}
	ctype = strings.TrimSpace(ctype)

	if ctype != "" && ctype != fiber.MIMEApplicationJSON {
		return invalidBody("Input should be a valid dictionary or object to extract fields from", "model_attributes_type")
	}

	if err := c.App().Config().JSONDecoder(body, req); err != nil {
		return invalidBody(err.Error(), "json_invalid")
	}
	return nil
}

func invalidBody(msg, errType string) *httperror.Error {
	return httperror.UnprocessableEntity(
		"request.invalid_body",
		"Invalid body",
		[]httperror.FieldError{{
			Loc:  []string{"body"},
			Msg:  msg,
			Type: errType,
		}},
	)
}

// writeError renders every failure as {"detail": ...}: the field error list
// when the error carries one, otherwise its message.
func writeError(c *fiber.Ctx, err error) error {
	var httpErr *httperror.Error
	if errors.As(err, &httpErr) {
		var detail any = httpErr.Message
		if httpErr.Details != nil {
			detail = httpErr.Details
		}

		if httpErr.Status >= fiber.StatusInternalServerError {
			zap.L().Error("Handler returned server error", zap.String("code", httpErr.Code), zap.Error(httpErr))
		} else {
			zap.L().Warn("Handler returned client error", zap.String("code", httpErr.Code), zap.Error(httpErr))
		}

		return c.Status(httpErr.Status).JSON(fiber.Map{"detail": detail})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		zap.L().Warn("Fiber error", zap.String("message", fiberErr.Message), zap.Error(err))
		return c.Status(fiberErr.Code).JSON(fiber.Map{"detail": fiberErr.Message})
	}

	zap.L().Error("Unhandled error", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"detail": "Internal server error.",
	})
}
