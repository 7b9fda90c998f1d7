package common

import (
	"time"

	"khoomi-api-io/taxonomy/pkg/models"
)

var Validate = models.NewValidator()

const (
	REQUEST_TIMEOUT_SECS = 30 * time.Second

	MAX_IMAGE_UPLOAD_BYTES = 5 << 20
)
