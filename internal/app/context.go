package app

import (
	"os"
	"strings"

	"novadream/internal/config"
)

// ResolveOwnerAndConfig loads the workspace config and picks the effective
// owner id. Precedence: explicit flag, NOVA_OWNER_ID, then config.
func ResolveOwnerAndConfig(workspace, ownerFlag string) (string, *config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return "", nil, err
	}
	owner := strings.TrimSpace(ownerFlag)
	if owner == "" {
		owner = strings.TrimSpace(os.Getenv("NOVA_OWNER_ID"))
	}
	if owner == "" {
		owner = strings.TrimSpace(cfg.Owner.ID)
	}
	if owner == "" {
		owner = "local-user"
	}
	return owner, cfg, nil
}
