package wallet

import (
	"context"

	"github.com/google/uuid"

	"github.com/petcare/petcare-api/internal/middleware"
)

// OwnerFromRole maps an authenticated role to the wallet owner type.
// Admins act on the ownerless platform wallet.
func OwnerFromRole(role string) (OwnerType, bool) {
	switch role {
	case "doctor":
		return OwnerDoctor, true
	case "user":
		return OwnerUser, true
	case "admin":
		return OwnerAdmin, true
	}
	return "", false
}

// OwnerFromContext resolves the caller's owner type and owner id.
func OwnerFromContext(ctx context.Context) (OwnerType, string, bool) {
	userID := middleware.GetUserID(ctx)
	if userID == uuid.Nil {
		return "", "", false
	}
	ownerType, ok := OwnerFromRole(middleware.GetRole(ctx))
	if !ok {
		return "", "", false
	}
	if ownerType == OwnerAdmin {
		return ownerType, "", true
	}
	return ownerType, userID.String(), true
}
