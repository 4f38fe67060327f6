package services

import (
	"github.com/tradepost/composite-backend/internal/clients/remote"
	"github.com/tradepost/composite-backend/internal/platform/apierr"
)

// fromRemote translates a remote call failure into the composite's error
// taxonomy. A timeout or transport failure is upstream_unavailable, never
// not_found; validation rejections keep their own kind so callers can tell
// "the service refused the shape" apart from "the resource is missing".
func fromRemote(err error) error {
	if err == nil {
		return nil
	}
	kind, ok := remote.ErrorKind(err)
	if !ok {
		return err
	}
	switch kind {
	case remote.KindNotFound:
		return apierr.NotFound(err)
	case remote.KindValidation:
		return apierr.Validation(err)
	default:
		return apierr.UpstreamUnavailable(err)
	}
}
