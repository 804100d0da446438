// Package credit implements the shared settlement path every paid action
// goes through.
package credit

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/davenport-labs/conjure/internal/models"
)

// Method identifies whose balance a charge lands on.
type Method struct {
	Kind string // models.PayerUser or models.PayerGuild
	ID   string
}

// UserMethod charges the user's own wallet.
func UserMethod(userID string) Method {
	return Method{Kind: models.PayerUser, ID: userID}
}

// GuildMethod charges the guild's shared public balance.
func GuildMethod(guildID string) Method {
	return Method{Kind: models.PayerGuild, ID: guildID}
}

// Settlement reports the outcome of one charge.
type Settlement struct {
	Method Method
	Amount int64
	// Remaining is the balance after the charge.
	Remaining int64
	// Insufficient is true when the balance could not fully cover the
	// amount. Nothing is debited in that case; callers decide what the
	// insufficiency means for the action.
	Insufficient bool
}

// GetOrCreateUserWallet loads a user's wallet, creating an empty one on
// first use.
func GetOrCreateUserWallet(db *gorm.DB, userID string) (*models.UserWallet, error) {
	var wallet models.UserWallet
	err := db.Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		wallet = models.UserWallet{UserID: userID}
		if err := db.Create(&wallet).Error; err != nil {
			return nil, fmt.Errorf("credit: create wallet for user %s: %w", userID, err)
		}
		return &wallet, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credit: load wallet for user %s: %w", userID, err)
	}
	return &wallet, nil
}

// GetOrCreateGuildWallet loads a guild's wallet, creating an empty one on
// first use.
func GetOrCreateGuildWallet(db *gorm.DB, guildID string) (*models.GuildWallet, error) {
	var wallet models.GuildWallet
	err := db.Where("guild_id = ?", guildID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		wallet = models.GuildWallet{GuildID: guildID}
		if err := db.Create(&wallet).Error; err != nil {
			return nil, fmt.Errorf("credit: create wallet for guild %s: %w", guildID, err)
		}
		return &wallet, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credit: load wallet for guild %s: %w", guildID, err)
	}
	return &wallet, nil
}

// Balance returns the method's current balance.
func Balance(db *gorm.DB, method Method) (int64, error) {
	switch method.Kind {
	case models.PayerUser:
		wallet, err := GetOrCreateUserWallet(db, method.ID)
		if err != nil {
			return 0, err
		}
		return wallet.Credits, nil
	case models.PayerGuild:
		wallet, err := GetOrCreateGuildWallet(db, method.ID)
		if err != nil {
			return 0, err
		}
		return wallet.PublicCredits, nil
	default:
		return 0, fmt.Errorf("credit: unknown payment method kind %q", method.Kind)
	}
}

// Settle charges amount against the method's balance. A balance that could
// not fully cover the amount is reported via Settlement.Insufficient rather
// than an error, and the charge is not applied: one logical event either
// charges in full or not at all.
func Settle(db *gorm.DB, method Method, amount int64) (*Settlement, error) {
	if amount < 0 {
		return nil, fmt.Errorf("credit: negative charge %d", amount)
	}

	s := &Settlement{Method: method, Amount: amount}
	switch method.Kind {
	case models.PayerUser:
		wallet, err := GetOrCreateUserWallet(db, method.ID)
		if err != nil {
			return nil, err
		}
		if wallet.Credits < amount {
			s.Insufficient = true
			s.Remaining = wallet.Credits
			return s, nil
		}
		wallet.RemoveCredits(amount)
		if err := db.Save(wallet).Error; err != nil {
			return nil, fmt.Errorf("credit: save wallet for user %s: %w", method.ID, err)
		}
		s.Remaining = wallet.Credits
	case models.PayerGuild:
		wallet, err := GetOrCreateGuildWallet(db, method.ID)
		if err != nil {
			return nil, err
		}
		if wallet.PublicCredits < amount {
			s.Insufficient = true
			s.Remaining = wallet.PublicCredits
			return s, nil
		}
		wallet.RemovePublicCredits(amount)
		if err := db.Save(wallet).Error; err != nil {
			return nil, fmt.Errorf("credit: save wallet for guild %s: %w", method.ID, err)
		}
		s.Remaining = wallet.PublicCredits
	default:
		return nil, fmt.Errorf("credit: unknown payment method kind %q", method.Kind)
	}
	return s, nil
}

// Deposit adds credits to the method's balance.
func Deposit(db *gorm.DB, method Method, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("credit: negative deposit %d", amount)
	}
	switch method.Kind {
	case models.PayerUser:
		wallet, err := GetOrCreateUserWallet(db, method.ID)
		if err != nil {
			return err
		}
		wallet.AddCredits(amount)
		if err := db.Save(wallet).Error; err != nil {
			return fmt.Errorf("credit: save wallet for user %s: %w", method.ID, err)
		}
	case models.PayerGuild:
		wallet, err := GetOrCreateGuildWallet(db, method.ID)
		if err != nil {
			return err
		}
		wallet.AddPublicCredits(amount)
		if err := db.Save(wallet).Error; err != nil {
			return fmt.Errorf("credit: save wallet for guild %s: %w", method.ID, err)
		}
	default:
		return fmt.Errorf("credit: unknown payment method kind %q", method.Kind)
	}
	return nil
}

// ShareOf computes the creator's cut of a charge, truncated toward zero.
func ShareOf(amount int64, share float64) int64 {
	if amount <= 0 || share <= 0 {
		return 0
	}
	return int64(float64(amount) * share)
}

// RewardCreator credits the creator with their share of a charge. A zero
// share is not an error; it simply deposits nothing.
func RewardCreator(db *gorm.DB, creatorID string, amount int64, share float64) error {
	cut := ShareOf(amount, share)
	if cut == 0 || creatorID == "" {
		return nil
	}
	return Deposit(db, UserMethod(creatorID), cut)
}
