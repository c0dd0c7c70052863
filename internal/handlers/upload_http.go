package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"featureboard/internal/metrics"
	"featureboard/internal/uploads"
	"featureboard/internal/utils"
)

// multipartOverhead is the slack allowed above the image limit for form
// boundaries and headers.
const multipartOverhead = 1 << 20

type UploadHTTP struct {
	mgr       *uploads.Manager
	maxBytes  int64
	threshold time.Duration
	log       zerolog.Logger
}

func NewUploadHTTP(mgr *uploads.Manager, maxBytes int64, threshold time.Duration, log zerolog.Logger) *UploadHTTP {
	if maxBytes <= 0 {
		maxBytes = uploads.MaxImageBytes
	}
	return &UploadHTTP{mgr: mgr, maxBytes: maxBytes, threshold: threshold, log: log}
}

// POST /api/uploads/temp  (multipart field "file")
// Returns: { tempFilename, signedUrl, expiresAt }
func (h *UploadHTTP) Temp() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
		f, hdr, err := r.FormFile("file")
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				metrics.UploadsRejected.WithLabelValues("size").Inc()
				utils.Error(w, http.StatusBadRequest, fmt.Sprintf("image must be %d MiB or smaller", h.maxBytes>>20))
				return
			}
			utils.Error(w, http.StatusBadRequest, "file is required")
			return
		}
		defer f.Close()
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll() //nolint:errcheck
		}

		// Read one byte past the limit so the manager sees oversize files.
		data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
		if err != nil {
			utils.Error(w, http.StatusBadRequest, "could not read file")
			return
		}
		ct := hdr.Header.Get("Content-Type")
		if ct == "" || ct == "application/octet-stream" {
			ct = http.DetectContentType(data)
		}

		st, err := h.mgr.StageUpload(r.Context(), uploads.File{Name: hdr.Filename, ContentType: ct, Data: data})
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusCreated, st)
	}
}

// POST /api/uploads/move  {tempFilename, originalName, originalType}
// Returns: { imageUrl }
func (h *UploadHTTP) Move() http.HandlerFunc {
	type inDTO struct {
		TempFilename string `json:"tempFilename"`
		OriginalName string `json:"originalName"`
		OriginalType string `json:"originalType"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in inDTO
		if err := utils.DecodeJSON(r, &in); err != nil {
			invalidJSON(w)
			return
		}
		p, _ := utils.PrincipalFrom(r.Context())
		url, err := h.mgr.Promote(r.Context(), in.TempFilename, in.OriginalName, in.OriginalType, p.ID)
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]string{"imageUrl": url})
	}
}

// POST /api/uploads/cleanup  {tempFilenames?, runFullCleanup?}
// Returns: { removedFiles }
func (h *UploadHTTP) Cleanup() http.HandlerFunc {
	type inDTO struct {
		TempFilenames  []string `json:"tempFilenames"`
		RunFullCleanup bool     `json:"runFullCleanup"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in inDTO
		if err := utils.DecodeJSON(r, &in); err != nil && !errors.Is(err, io.EOF) {
			invalidJSON(w)
			return
		}

		removed := []string{}
		if len(in.TempFilenames) > 0 {
			keys, err := h.mgr.Discard(r.Context(), in.TempFilenames)
			if err != nil {
				fail(w, r, h.log, err)
				return
			}
			removed = append(removed, keys...)
		}
		if in.RunFullCleanup {
			res, err := h.mgr.SweepExpired(r.Context(), h.threshold)
			if err != nil {
				fail(w, r, h.log, err)
				return
			}
			metrics.SweepLastRun.SetToCurrentTime()
			removed = append(removed, res.Keys...)
		}
		utils.JSON(w, http.StatusOK, map[string]any{"removedFiles": removed})
	}
}
