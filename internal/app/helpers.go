package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/perse-cms/perse/internal/config"
	jwtpkg "github.com/perse-cms/perse/internal/pkg/jwt"
	"go.uber.org/zap"
)

// applyRuntimeSettings applies the process timezone and returns the admin
// token signer, nil when no jwt_secret is configured.
func applyRuntimeSettings(cfg *config.AppConfig, logger *zap.Logger) (*jwtpkg.Signer, error) {
	var signer *jwtpkg.Signer
	if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" {
		s, err := jwtpkg.NewSigner(secret)
		if err != nil {
			return nil, err
		}
		signer = s
	} else if cfg.IsDev() {
		logger.Warn("jwt_secret is empty, admin routes are open in development")
	} else {
		logger.Warn("jwt_secret is empty, admin routes are closed")
	}

	tz := strings.TrimSpace(cfg.Timezone)
	if tz == "" {
		return signer, nil
	}
	loc, err := parseTimezoneLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	time.Local = loc
	_ = os.Setenv("TZ", tz)
	return signer, nil
}

func parseTimezoneLocation(raw string) (*time.Location, error) {
	tz := strings.TrimSpace(raw)
	if tz == "" {
		return time.Local, nil
	}
	if loc, err := time.LoadLocation(tz); err == nil {
		return loc, nil
	}
	if len(tz) == 6 && (tz[0] == '+' || tz[0] == '-') && tz[3] == ':' {
		h, errH := strconv.Atoi(tz[1:3])
		m, errM := strconv.Atoi(tz[4:6])
		if errH == nil && errM == nil && h <= 23 && m <= 59 {
			offset := h*3600 + m*60
			if tz[0] == '-' {
				offset = -offset
			}
			return time.FixedZone(tz, offset), nil
		}
	}
	return nil, fmt.Errorf("expect IANA zone (e.g. Europe/Berlin) or UTC offset (e.g. +02:00)")
}

func humanizeDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Truncate(time.Second).String()
	}
	if d < time.Hour {
		return d.Truncate(time.Minute).String()
	}
	if d < 24*time.Hour {
		return d.Truncate(time.Hour).String()
	}
	return d.Truncate(24 * time.Hour).String()
}
