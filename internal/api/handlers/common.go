package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoolisten/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)

	code := utils.CodeInternal
	var ae *utils.AppError
	if errors.As(err, &ae) {
		code = ae.Code
	}
	if status >= 500 {
		_ = c.Error(err)
	}
	c.JSON(status, APIError{
		Code:    code,
		Message: utils.PublicMessage(err),
	})
}
