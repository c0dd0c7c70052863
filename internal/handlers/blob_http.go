package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"featureboard/internal/blob"
	"featureboard/internal/utils"
)

// BlobHTTP serves stored objects. The permanent bucket is public; every
// other bucket requires a signed, unexpired token for the exact key.
type BlobHTTP struct {
	buckets map[string]blob.Store
	public  map[string]bool
	signer  *blob.Signer
	log     zerolog.Logger
}

func NewBlobHTTP(signer *blob.Signer, log zerolog.Logger, public blob.Store, private ...blob.Store) *BlobHTTP {
	h := &BlobHTTP{
		buckets: map[string]blob.Store{public.Bucket(): public},
		public:  map[string]bool{public.Bucket(): true},
		signer:  signer,
		log:     log,
	}
	for _, s := range private {
		h.buckets[s.Bucket()] = s
	}
	return h
}

// GET /blobs/{bucket}/*?token=
func (h *BlobHTTP) Serve() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bucket := chi.URLParam(r, "bucket")
		store, ok := h.buckets[bucket]
		if !ok {
			utils.Error(w, http.StatusNotFound, "not found")
			return
		}
		key := chi.URLParam(r, "*")
		if k, err := url.PathUnescape(key); err == nil {
			key = k
		}

		if !h.public[bucket] {
			if err := h.signer.Verify(r.URL.Query().Get("token"), bucket, key); err != nil {
				utils.Error(w, http.StatusForbidden, "link expired or invalid")
				return
			}
		}

		data, ct, err := store.Download(r.Context(), key)
		if err != nil {
			fail(w, r, h.log, err)
			return
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("X-Content-Type-Options", "nosniff")
		if h.public[bucket] {
			w.Header().Set("Cache-Control", "public, max-age=86400")
		} else {
			w.Header().Set("Cache-Control", "private, no-store")
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
