package controllers

import (
	"context"
	"net/http"
	"strconv"

	"khoomi-api-io/taxonomy/internal/common"
	"khoomi-api-io/taxonomy/pkg/models"
	"khoomi-api-io/taxonomy/pkg/services"
	"khoomi-api-io/taxonomy/pkg/taxonomy"
	"khoomi-api-io/taxonomy/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// WithTimeout creates a context with the standard request timeout
func WithTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), common.REQUEST_TIMEOUT_SECS)
}

// bindAndValidate binds the JSON body into req and runs its validate tags.
func bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		util.HandleError(c, http.StatusBadRequest, err)
		return false
	}
	if err := common.Validate.Struct(req); err != nil {
		util.HandleError(c, http.StatusUnprocessableEntity, err)
		return false
	}
	return true
}

// dryRun reports whether the request asks for validation only.
func dryRun(c *gin.Context) bool {
	v, err := strconv.ParseBool(c.DefaultQuery("dryRun", "false"))
	return err == nil && v
}

// categoryErrorStatus maps service errors onto HTTP statuses.
func categoryErrorStatus(err error) int {
	var attrErrs models.AttributeErrors
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, taxonomy.ErrCategoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, taxonomy.ErrDuplicateSlug),
		errors.Is(err, taxonomy.ErrCyclicParent),
		errors.Is(err, taxonomy.ErrHasDependents),
		errors.Is(err, services.ErrStaleSnapshot):
		return http.StatusConflict
	case errors.Is(err, taxonomy.ErrParentNotFound),
		errors.Is(err, taxonomy.ErrInvalidTemplate),
		errors.Is(err, taxonomy.ErrInvalidSlug),
		errors.Is(err, taxonomy.ErrInvalidCategory),
		errors.Is(err, taxonomy.ErrDepthExceeded),
		errors.As(err, &attrErrs),
		errors.As(err, &validationErrs):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func handleCategoryError(c *gin.Context, err error) {
	var attrErrs models.AttributeErrors
	if errors.As(err, &attrErrs) {
		util.HandleErrorDetails(c, http.StatusUnprocessableEntity, err, attrErrs)
		return
	}
	util.HandleError(c, categoryErrorStatus(err), err)
}
