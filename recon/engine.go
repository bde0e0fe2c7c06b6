package recon

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/grimsurvivors/potdhub/audit"
	"github.com/grimsurvivors/potdhub/cache"
	"github.com/grimsurvivors/potdhub/config"
	"github.com/grimsurvivors/potdhub/model"
	"github.com/grimsurvivors/potdhub/outbox"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StatsChannel is the pub/sub channel carrying live character stat events.
const StatsChannel = "stats"

// Stats is the mutable stat snapshot reported by the game for one character.
type Stats struct {
	ZombiesKilled int      `json:"zombiesKilled"`
	HoursSurvived float64  `json:"hoursSurvived"`
	Profession    string   `json:"profession"`
	Traits        []string `json:"traits"`
}

// Engine reconciles game-reported facts against the persistent store. Every
// operation runs as a single transaction; operations touching one user's
// characters are additionally serialized through a per-user mutex.
type Engine struct {
	db     *gorm.DB
	outbox *outbox.Service
	audit  *audit.Service
	pubsub cache.PubSub
	logger *zap.Logger
	cfg    config.GameConfig
	locks  keyedMutex
}

// New creates an Engine. audit and pubsub may be nil; the corresponding side
// effects are skipped.
func New(db *gorm.DB, ob *outbox.Service, aud *audit.Service, ps cache.PubSub, cfg config.GameConfig, logger *zap.Logger) *Engine {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	if cfg.PlaceholderCharName == "" {
		cfg.PlaceholderCharName = "Survivor Verified"
	}
	return &Engine{db: db, outbox: ob, audit: aud, pubsub: ps, cfg: cfg, logger: logger}
}

// ApplyAuth upserts a verification code reported by the game. Last write for
// a given code wins; several codes may point at the same username.
func (e *Engine) ApplyAuth(ctx context.Context, username, code string) error {
	expiresAt := time.Now().Add(e.cfg.CodeTTL)
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.VerificationCode
		err := tx.Where("code = ?", code).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&model.VerificationCode{
				Code:      code,
				Username:  username,
				ExpiresAt: expiresAt,
			}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&existing).Updates(map[string]interface{}{
			"username":   username,
			"expires_at": expiresAt,
		}).Error
	})
}

// ConsumeVerification redeems a code for the session user: links the code's
// username, marks the user verified, ensures an alive placeholder character,
// and deletes the code. An expired code fails without being deleted.
func (e *Engine) ConsumeVerification(ctx context.Context, userID int64, code string) (string, error) {
	// Resolve the code before locking so the username's stats lock can be
	// taken too. Without it a verification and a first stats report for the
	// same player could both see "no alive character" and create two. The
	// lock order is user then name; ApplyStats only ever takes name, so the
	// two cannot deadlock.
	var probe model.VerificationCode
	if err := e.db.WithContext(ctx).Where("code = ?", code).First(&probe).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrCodeNotFound
		}
		return "", err
	}
	unlockUser := e.locks.lock(userKey(userID))
	defer unlockUser()
	unlockName := e.locks.lock(nameKey(probe.Username))
	defer unlockName()

	var username string
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var vc model.VerificationCode
		if err := tx.Where("code = ?", code).First(&vc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCodeNotFound
			}
			return err
		}
		if vc.Expired(time.Now()) {
			return ErrCodeExpired
		}
		username = vc.Username

		// A username maps to at most one user. Unlink it from any other
		// account before linking, so the unique index cannot fail when a
		// player re-verifies from a new web account.
		if err := tx.Model(&model.User{}).
			Where("username = ? AND id <> ?", vc.Username, userID).
			Updates(map[string]interface{}{"username": nil, "is_verified": false}).Error; err != nil {
			return err
		}

		if err := tx.Model(&model.User{}).Where("id = ?", userID).
			Updates(map[string]interface{}{"username": vc.Username, "is_verified": true}).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&model.Character{}).
			Where("user_id = ? AND is_alive = ?", userID, true).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			// Placeholder until the next stats tick reports the real name.
			if err := tx.Create(&model.Character{
				UserID:   userID,
				FullName: e.cfg.PlaceholderCharName,
				IsAlive:  true,
			}).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&vc).Error
	})
	if err != nil {
		return "", err
	}

	e.auditLog(audit.Entry{
		UserID:   &userID,
		Action:   "verification_consumed",
		Request:  map[string]string{"code": code},
		Response: map[string]string{"username": username},
	})
	return username, nil
}

// ApplyStats reconciles one stats report: optional faction sync, then
// character sync with name-comparison death detection.
func (e *Engine) ApplyStats(ctx context.Context, username, charName string, stats Stats, faction string, isLeader bool) error {
	unlock := e.locks.lock(nameKey(username))
	defer unlock()

	var (
		user model.User
		died bool
	)
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("username = ?", username).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotLinked
			}
			return err
		}

		if faction != "" {
			if err := e.syncFaction(tx, &user, faction, isLeader); err != nil {
				return err
			}
		}

		d, err := e.syncCharacter(tx, &user, charName, stats)
		if err != nil {
			return err
		}
		died = d
		return nil
	})
	if err != nil {
		return err
	}

	if died {
		e.auditLog(audit.Entry{
			UserID:   &user.ID,
			CharName: charName,
			Action:   "death_detected",
			Request:  map[string]interface{}{"username": username, "newChar": charName},
		})
	}
	e.publishStats(ctx, username, charName, stats, died)
	return nil
}

// syncFaction mirrors the game-reported faction membership. Roles only move
// upward here; demotion happens solely through a faction switch.
func (e *Engine) syncFaction(tx *gorm.DB, user *model.User, factionName string, isLeader bool) error {
	role := model.RoleMember
	if isLeader {
		role = model.RoleLeader
	}

	var faction model.Faction
	err := tx.Where("name = ?", factionName).First(&faction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Only a reported leader may create the faction; for anyone else the
		// faction simply is not synced yet.
		if !isLeader {
			return nil
		}
		faction = model.Faction{Name: factionName, OwnerID: user.ID}
		if err := tx.Create(&faction).Error; err != nil {
			return err
		}
		if err := e.upsertMembership(tx, user.ID, faction.ID, model.RoleLeader); err != nil {
			return err
		}
		e.auditLog(audit.Entry{
			UserID:   &user.ID,
			Action:   "faction_created",
			Request:  map[string]string{"faction": factionName},
		})
		return nil
	}
	if err != nil {
		return err
	}

	var member model.FactionMember
	err = tx.Where("user_id = ?", user.ID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return e.upsertMembership(tx, user.ID, faction.ID, role)
	}
	if err != nil {
		return err
	}

	if member.FactionID != faction.ID {
		// Faction switch: the membership row is reused, not duplicated.
		if err := tx.Model(&member).Updates(map[string]interface{}{
			"faction_id": faction.ID,
			"role":       role,
		}).Error; err != nil {
			return err
		}
		e.auditLog(audit.Entry{
			UserID:  &user.ID,
			Action:  "faction_switched",
			Request: map[string]string{"faction": factionName, "role": role},
		})
		return nil
	}

	if isLeader && member.Role != model.RoleLeader {
		if err := tx.Model(&member).Update("role", model.RoleLeader).Error; err != nil {
			return err
		}
		if faction.OwnerID != user.ID {
			if err := tx.Model(&faction).Update("owner_id", user.ID).Error; err != nil {
				return err
			}
		}
		e.auditLog(audit.Entry{
			UserID:  &user.ID,
			Action:  "member_promoted",
			Request: map[string]string{"faction": factionName},
		})
	}
	return nil
}

func (e *Engine) upsertMembership(tx *gorm.DB, userID, factionID int64, role model.FactionRole) error {
	var member model.FactionMember
	err := tx.Where("user_id = ?", userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(&model.FactionMember{
			UserID:    userID,
			FactionID: factionID,
			Role:      role,
		}).Error
	}
	if err != nil {
		return err
	}
	return tx.Model(&member).Updates(map[string]interface{}{
		"faction_id": factionID,
		"role":       role,
	}).Error
}

// syncCharacter applies the character portion of a stats report. Returns
// whether a death transition was recorded.
func (e *Engine) syncCharacter(tx *gorm.DB, user *model.User, charName string, stats Stats) (bool, error) {
	traits, err := marshalTraits(stats.Traits)
	if err != nil {
		return false, err
	}

	var active model.Character
	err = tx.Where("user_id = ? AND is_alive = ?", user.ID, true).First(&active).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// First sighting.
		return false, tx.Create(newCharacter(user.ID, charName, stats, traits)).Error
	}
	if err != nil {
		return false, err
	}

	if characterChanged(active.FullName, charName) {
		// Death event: kill the old character, start a fresh one. Stats are
		// not carried over.
		now := time.Now()
		if err := tx.Model(&active).Updates(map[string]interface{}{
			"is_alive": false,
			"died_at":  now,
		}).Error; err != nil {
			return false, err
		}
		return true, tx.Create(newCharacter(user.ID, charName, stats, traits)).Error
	}

	// Same character: full overwrite of the stat snapshot. A late report can
	// regress stats downward; the game is the source of truth.
	return false, tx.Model(&active).Updates(map[string]interface{}{
		"zombies_killed": stats.ZombiesKilled,
		"hours_survived": stats.HoursSurvived,
		"profession":     professionOrNil(stats.Profession),
		"traits":         traits,
	}).Error
}

// characterChanged is the sole death/rebirth signal: the game reports a
// different character name than the one last known alive. A benign rename is
// indistinguishable from death here; keep this predicate isolated so an
// explicit death signal can replace it later.
func characterChanged(current, reported string) bool {
	return current != reported
}

func newCharacter(userID int64, charName string, stats Stats, traits datatypes.JSON) *model.Character {
	return &model.Character{
		UserID:        userID,
		FullName:      charName,
		IsAlive:       true,
		ZombiesKilled: stats.ZombiesKilled,
		HoursSurvived: stats.HoursSurvived,
		Profession:    professionOrNil(stats.Profession),
		Traits:        traits,
	}
}

func professionOrNil(p string) *string {
	if p == "" {
		return nil
	}
	return &p
}

func marshalTraits(traits []string) (datatypes.JSON, error) {
	if traits == nil {
		traits = []string{}
	}
	b, err := json.Marshal(traits)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// ApplyFactionApplication files a join request for the user.
func (e *Engine) ApplyFactionApplication(ctx context.Context, userID, factionID int64, message string) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member model.FactionMember
		err := tx.Where("user_id = ?", userID).First(&member).Error
		if err == nil {
			return ErrAlreadyMember
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var pending int64
		if err := tx.Model(&model.FactionApplication{}).
			Where("user_id = ? AND status = ?", userID, model.ApplicationPending).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return ErrApplicationPending
		}

		var faction model.Faction
		if err := tx.First(&faction, factionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFactionNotFound
			}
			return err
		}

		return tx.Create(&model.FactionApplication{
			UserID:    userID,
			FactionID: factionID,
			Message:   message,
			Status:    model.ApplicationPending,
		}).Error
	})
}

// ApplyFactionAction resolves an application. ACCEPT atomically creates the
// membership, deletes the application, and enqueues an ADD_MEMBER command;
// REJECT flips the status and keeps the row for audit.
func (e *Engine) ApplyFactionAction(ctx context.Context, applicationID int64, action string, requesterID int64) error {
	var (
		applicantID int64
		factionName string
	)
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var app model.FactionApplication
		if err := tx.First(&app, applicationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrApplicationNotFound
			}
			return err
		}

		var requester model.FactionMember
		if err := tx.Where("user_id = ?", requesterID).First(&requester).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrForbidden
			}
			return err
		}
		if requester.FactionID != app.FactionID {
			return ErrForbidden
		}
		if requester.Role == model.RoleMember {
			return ErrInsufficientPermissions
		}

		switch action {
		case "ACCEPT":
			var faction model.Faction
			if err := tx.First(&faction, app.FactionID).Error; err != nil {
				return err
			}
			factionName = faction.Name
			applicantID = app.UserID

			if err := tx.Create(&model.FactionMember{
				UserID:    app.UserID,
				FactionID: app.FactionID,
				Role:      model.RoleMember,
			}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&app).Error; err != nil {
				return err
			}

			// The game needs the applicant's in-game name; fall back to a
			// sentinel when the account never linked one.
			var applicant model.User
			if err := tx.First(&applicant, app.UserID).Error; err != nil {
				return err
			}
			gameName := "Unknown"
			if applicant.Username != nil {
				gameName = *applicant.Username
			}
			payload, err := json.Marshal(map[string]string{
				"username": gameName,
				"faction":  faction.Name,
			})
			if err != nil {
				return err
			}
			return e.outbox.EnqueueTx(tx, model.CommandAddMember, string(payload))

		case "REJECT":
			applicantID = app.UserID
			return tx.Model(&app).Update("status", model.ApplicationRejected).Error

		default:
			return ErrInvalidAction
		}
	})
	if err != nil {
		return err
	}

	switch action {
	case "ACCEPT":
		e.auditLog(audit.Entry{
			UserID:   &requesterID,
			Action:   "application_accepted",
			Request:  map[string]interface{}{"applicationId": applicationID, "applicant": applicantID, "faction": factionName},
		})
	case "REJECT":
		e.auditLog(audit.Entry{
			UserID:  &requesterID,
			Action:  "application_rejected",
			Request: map[string]interface{}{"applicationId": applicationID, "applicant": applicantID},
		})
	}
	return nil
}

// PurgeExpiredCodes deletes verification codes expired for longer than the
// grace period. Expired codes are otherwise left in place (a failed consume
// never deletes), so the table needs periodic trimming.
func (e *Engine) PurgeExpiredCodes(ctx context.Context, grace time.Duration) (int64, error) {
	cutoff := time.Now().Add(-grace)
	res := e.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&model.VerificationCode{})
	return res.RowsAffected, res.Error
}

func (e *Engine) auditLog(entry audit.Entry) {
	if e.audit != nil {
		e.audit.Log(entry)
	}
}

func (e *Engine) publishStats(ctx context.Context, username, charName string, stats Stats, died bool) {
	if e.pubsub == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"username":      username,
		"charName":      charName,
		"zombiesKilled": stats.ZombiesKilled,
		"hoursSurvived": stats.HoursSurvived,
		"died":          died,
	})
	if err != nil {
		return
	}
	if err := e.pubsub.Publish(ctx, StatsChannel, string(payload)); err != nil {
		e.logger.Warn("stats publish failed", zap.Error(err))
	}
}

func userKey(id int64) string {
	return "user:" + strconv.FormatInt(id, 10)
}

func nameKey(username string) string {
	return "name:" + username
}
