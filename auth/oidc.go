package auth

import (
	"context"

	"github.com/aliboard/aliboard-server/config"
	"github.com/aliboard/aliboard-server/globals"
	"github.com/aliboard/aliboard-server/persistence"
	"github.com/aliboard/aliboard-server/types"
	"github.com/coreos/go-oidc/v3/oidc"
)

// Authenticate verifies a given OIDC ID-Token using the configured OIDC provider.
// It returns the user's id if verification was successful (or an empty string if no provider was configured).
func Authenticate(idToken, oidcProvider string, cfg *config.Config) (string, error) {
	if idToken == "" || len(cfg.OIDCConfigs) == 0 {
		return "", nil
	}
	var oidcConf *config.OIDCConfig
	for i := range cfg.OIDCConfigs {
		if cfg.OIDCConfigs[i].Name == oidcProvider {
			oidcConf = &cfg.OIDCConfigs[i]
			break
		}
	}
	if oidcConf == nil {
		globals.AppLogger.Debug("no oidc config found for provider", "provider", oidcProvider)
		return "", nil
	}
	provider, err := oidc.NewProvider(context.Background(), oidcConf.ProviderUrl)
	if err != nil {
		return "", err
	}
	conf := oidc.Config{}
	if oidcConf.ClientId == "" {
		conf.SkipClientIDCheck = true
	} else {
		conf.ClientID = oidcConf.ClientId
	}
	verifiedIdToken, err := provider.Verifier(&conf).Verify(context.Background(), idToken)
	if err != nil {
		globals.AppLogger.Error("could not verify token", "error", err)
		return "", err
	}

	claims := struct {
		Email string `json:"email"`
	}{}
	if err := verifiedIdToken.Claims(&claims); err != nil {
		return "", err
	}
	return claims.Email, nil
}

// IsParticipant decides whether a user may join a room. Rooms are created
// lazily, so a room without a durable record (or with an empty roster) is open
// to anyone, including guests. Once a roster exists only its teacher and
// student are admitted. A storage error fails open: the live session must not
// go dark because the database is briefly unavailable.
func IsParticipant(user *types.User, roomId string, persister persistence.Persister) bool {
	if persister == nil {
		return true
	}
	room := &types.Room{Id: roomId}
	err := persister.GetRoom(room)
	if err == persistence.ErrNotFound {
		return true
	}
	if err != nil {
		globals.AppLogger.Error("could not load room for participant check", "room", roomId, "error", err)
		return true
	}
	if !room.HasRoster() {
		return true
	}
	if user == nil {
		return false
	}
	return room.IsParticipant(user.Id)
}
