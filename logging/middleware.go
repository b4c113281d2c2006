package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// FiberMiddleware attaches correlation/request IDs and a request-scoped
// logger to every request, logging start and completion.
func FiberMiddleware(logger *Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		correlationID := c.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("X-Correlation-ID", correlationID)
		c.Set("X-Request-ID", requestID)

		ctx := context.WithValue(c.Context(), ContextKeyCorrelationID, correlationID)
		ctx = context.WithValue(ctx, ContextKeyRequestID, requestID)

		reqLogger := logger.With(
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.String("correlation_id", correlationID),
			slog.String("request_id", requestID),
		)

		c.SetUserContext(ctx)
		c.Locals("logger", reqLogger)
		c.Locals("correlation_id", correlationID)
		c.Locals("request_id", requestID)

		reqLogger.DebugContext(ctx, "request started",
			slog.String("query", string(c.Request().URI().QueryString())),
		)

		err := c.Next()

		duration := time.Since(start)
		ctx = context.WithValue(ctx, ContextKeyOperationDuration, duration)

		status := c.Response().StatusCode()
		level := slog.LevelInfo
		switch {
		case err != nil || status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		case duration > 5*time.Second:
			level = slog.LevelWarn
		}

		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.Duration("duration", duration),
			slog.Int("bytes", len(c.Response().Body())),
			slog.String("type", "http_request"),
		}

		if err != nil {
			if appErr, ok := err.(*AppError); ok {
				attrs = append(attrs, slog.Any("error", appErr))
			} else {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
		}

		reqLogger.LogAttrs(ctx, level, "request completed", attrs...)

		return err
	}
}

// GetLogger retrieves the request-scoped logger from a Fiber context.
func GetLogger(c *fiber.Ctx) *slog.Logger {
	if logger, ok := c.Locals("logger").(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// GetCorrelationID retrieves the correlation ID set by FiberMiddleware.
func GetCorrelationID(c *fiber.Ctx) string {
	if id, ok := c.Locals("correlation_id").(string); ok {
		return id
	}
	return ""
}

// GetRequestID retrieves the request ID set by FiberMiddleware.
func GetRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("request_id").(string); ok {
		return id
	}
	return ""
}

// ErrorHandler is a Fiber error handler that maps AppError codes to HTTP
// status codes and logs the failure with full structured context.
func ErrorHandler(logger *Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		reqLogger := GetLogger(c)

		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		}

		var appErr *AppError
		if ae, ok := err.(*AppError); ok {
			appErr = ae
			switch ae.Code {
			case ErrCodeValidation:
				code = fiber.StatusBadRequest
			case ErrCodeNotFound:
				code = fiber.StatusNotFound
			case ErrCodeAlreadyExists:
				code = fiber.StatusConflict
			case ErrCodeTimeout:
				code = fiber.StatusRequestTimeout
			case ErrCodeOutputMissing, ErrCodeToolFailed:
				code = fiber.StatusUnprocessableEntity
			default:
				code = fiber.StatusInternalServerError
			}
			message = ae.Message
		}

		if appErr != nil {
			reqLogger.ErrorContext(c.UserContext(), "request error",
				slog.Any("error", appErr),
				slog.Int("status", code),
			)
		} else {
			reqLogger.ErrorContext(c.UserContext(), "request error",
				slog.String("error", err.Error()),
				slog.Int("status", code),
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": message,
			"code":  code,
		})
	}
}

// RecoveryMiddleware converts a panic inside a handler into a logged 500
// response instead of crashing the process.
func RecoveryMiddleware(logger *Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(c.UserContext(), "panic recovered",
					slog.Any("panic", r),
					slog.String("path", c.Path()),
				)
				err = fiber.NewError(fiber.StatusInternalServerError, "internal server error")
			}
		}()
		return c.Next()
	}
}
