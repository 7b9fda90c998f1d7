package controllers

import (
	"net/http"

	"khoomi-api-io/taxonomy/internal/common"
	"khoomi-api-io/taxonomy/internal/helpers"
	"khoomi-api-io/taxonomy/pkg/models"
	"khoomi-api-io/taxonomy/pkg/services"
	"khoomi-api-io/taxonomy/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type CategoryController struct {
	categoryService services.CategoryService
	uploader        util.MediaUploader
}

// InitCategoryController wires the controller. uploader may be nil, in which
// case image uploads answer 503.
func InitCategoryController(categoryService services.CategoryService, uploader util.MediaUploader) *CategoryController {
	return &CategoryController{
		categoryService: categoryService,
		uploader:        uploader,
	}
}

// GetAllCategories handles GET /v1/categories
func (cc *CategoryController) GetAllCategories() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := WithTimeout(c)
		defer cancel()

		forest, err := cc.categoryService.GetForest(ctx)
		if err != nil {
			handleCategoryError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "Categories retrieved successfully", forest)
	}
}

// SearchCategories handles GET /v1/categories/search?s=
func (cc *CategoryController) SearchCategories() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := WithTimeout(c)
		defer cancel()

		categories, err := cc.categoryService.SearchCategories(ctx, c.Query("s"))
		if err != nil {
			handleCategoryError(c, err)
			return
		}

		util.HandleSuccessMeta(c, http.StatusOK, "Categories retrieved successfully", categories, gin.H{"count": len(categories)})
	}
}

func (cc *CategoryController) GetCategory() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := WithTimeout(c)
		defer cancel()

		category, err := cc.categoryService.GetCategory(ctx, c.Param("id"))
		if err != nil {
			handleCategoryError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "Category retrieved successfully", category)
	}
}

func (cc *CategoryController) GetCategoryChildren() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := WithTimeout(c)
		defer cancel()

		category, err := cc.categoryService.GetCategoryChildren(ctx, c.Param("id"))
		if err != nil {
			handleCategoryError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "Category with children retrieved successfully", category)
	}
}

func (cc *CategoryController) GetCategoryAncestors() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := WithTimeout(c)
		defer cancel()

		ancestors, err := cc.categoryService.GetCategoryAncestors(ctx, c.Param("id"))
		if err != nil {
			handleCategoryError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "Category ancestors retrieved successfully", ancestors)
	}
}

// GetCategoryTemplate handles GET /v1/categories/:id/template
func (cc *CategoryController) GetCategoryTemplate() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := WithTimeout(c)
		defer cancel()

		res, err := cc.categoryService.ResolveTemplate(ctx, c.Param("id"))
		if err != nil {
			handleCategoryError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "Category template resolved", res)
	}
}

// ValidateListingAttributes handles POST /v1/categories/:id/template/validate
func (cc *CategoryController) ValidateListingAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := WithTimeout(c)
		defer cancel()

		var req models.AttributeValuesRequest
		if !bindAndValidate(c, &req) {
			return
		}

		res, err := cc.categoryService.ValidateListingAttributes(ctx, c.Param("id"), req.Values)
		if err != nil {
			handleCategoryError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "Attributes are valid", res)
	}
}

// CreateCategory handles POST /v1/categories
func (cc *CategoryController) CreateCategory() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := WithTimeout(c)
		defer cancel()

		var req models.CategoryRequest
		if !bindAndValidate(c, &req) {
			return
		}

		dry := dryRun(c)
		category, err := cc.categoryService.CreateCategory(ctx, req, dry)
		if err != nil {
			handleCategoryError(c, err)
			return
		}

		if dry {
			util.HandleSuccess(c, http.StatusOK, "Category can be created", category)
			return
		}
		util.HandleSuccess(c, http.StatusCreated, "Category created", category)
	}
}

// CreateCategoryMulti handles POST /v1/categories/multi
func (cc *CategoryController) CreateCategoryMulti() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := WithTimeout(c)
		defer cancel()

		var req models.CategoryRequestMulti
		if !bindAndValidate(c, &req) {
			return
		}

		dry := dryRun(c)
		categories, err := cc.categoryService.CreateCategories(ctx, req, dry)
		if err != nil {
			handleCategoryError(c, err)
			return
		}

		if dry {
			util.HandleSuccess(c, http.StatusOK, "Categories can be created", categories)
			return
		}
		util.HandleSuccess(c, http.StatusCreated, "All categories created successfully.", categories)
	}
}

// UpdateCategory handles PUT /v1/categories/:id
func (cc *CategoryController) UpdateCategory() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := WithTimeout(c)
		defer cancel()

		var req models.CategoryUpdateRequest
		if !bindAndValidate(c, &req) {
			return
		}

		category, err := cc.categoryService.UpdateCategory(ctx, c.Param("id"), req, dryRun(c))
		if err != nil {
			handleCategoryError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "Category updated", category)
	}
}

// MoveCategory handles PUT /v1/categories/:id/parent. An empty parentId
// moves the category to the root.
func (cc *CategoryController) MoveCategory() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := WithTimeout(c)
		defer cancel()

		var req models.CategoryMoveRequest
		if !bindAndValidate(c, &req) {
			return
		}

		category, err := cc.categoryService.MoveCategory(ctx, c.Param("id"), req.ParentID, dryRun(c))
		if err != nil {
			handleCategoryError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "Category moved", category)
	}
}

// DeleteCategory handles DELETE /v1/categories/:id
func (cc *CategoryController) DeleteCategory() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := WithTimeout(c)
		defer cancel()

		dry := dryRun(c)
		plan, err := cc.categoryService.DeleteCategory(ctx, c.Param("id"), dry)
		if err != nil {
			handleCategoryError(c, err)
			return
		}

		if dry {
			util.HandleSuccess(c, http.StatusOK, "Category can be deleted", plan)
			return
		}
		util.HandleSuccess(c, http.StatusOK, "Category deleted", plan)
	}
}

// UpdateCategoryImage handles PUT /v1/categories/:id/image
func (cc *CategoryController) UpdateCategoryImage() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := WithTimeout(c)
		defer cancel()

		if cc.uploader == nil {
			util.HandleError(c, http.StatusServiceUnavailable, errors.New("image uploads are not configured"))
			return
		}

		id := c.Param("id")
		if _, err := cc.categoryService.GetCategory(ctx, id); err != nil {
			handleCategoryError(c, err)
			return
		}

		file, err := helpers.OpenImage(c, "image", common.MAX_IMAGE_UPLOAD_BYTES)
		switch {
		case errors.Is(err, helpers.ErrImageTooLarge):
			util.HandleError(c, http.StatusRequestEntityTooLarge, err)
			return
		case err != nil:
			util.HandleError(c, http.StatusBadRequest, err)
			return
		}
		defer file.Close()

		url, err := cc.uploader.Upload(ctx, file, id)
		if err != nil {
			util.HandleError(c, http.StatusBadGateway, err)
			return
		}

		category, err := cc.categoryService.UpdateCategoryImage(ctx, id, url)
		if err != nil {
			if rmErr := cc.uploader.Remove(ctx, id); rmErr != nil {
				util.LogWarning("failed to remove orphaned category image", zap.String("id", id), zap.Error(rmErr))
			}
			handleCategoryError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "Category image updated", category)
	}
}

// GetCategoryAudit handles GET /v1/categories/audit
func (cc *CategoryController) GetCategoryAudit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := WithTimeout(c)
		defer cancel()

		report, err := cc.categoryService.Audit(ctx)
		if err != nil {
			handleCategoryError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "Category audit complete", report)
	}
}
