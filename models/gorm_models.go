// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// User 身份协作方提供的玩家
type User struct {
	ID        int64  `gorm:"primaryKey"`
	Username  string `gorm:"uniqueIndex;not null"`
	IsStaff   bool   `gorm:"default:false"`
	CreatedAt time.Time
}

// CharacterCard 角色卡目录
type CharacterCard struct {
	ID     int    `gorm:"primaryKey"`
	Name   string `gorm:"size:64;not null"`
	Up     int    `gorm:"not null"`
	Down   int    `gorm:"not null"`
	Left   int    `gorm:"not null"`
	Right  int    `gorm:"not null"`
	Rarity string `gorm:"size:16;default:common;index"`
	Image  string
}

// TrapCard 陷阱卡目录
type TrapCard struct {
	ID       int    `gorm:"primaryKey"`
	Name     string `gorm:"size:64;not null"`
	TrapType string `gorm:"size:32;not null"`
	Value    int    `gorm:"default:1"`
	Rarity   string `gorm:"size:16;default:common;index"`
	Image    string
}

// UserCharacterCard 玩家持有的角色卡
type UserCharacterCard struct {
	ID       uint  `gorm:"primaryKey"`
	UserID   int64 `gorm:"uniqueIndex:idx_user_character;not null"`
	CardID   int   `gorm:"uniqueIndex:idx_user_character;not null"`
	Quantity int   `gorm:"default:1"`
}

// UserTrapCard 玩家持有的陷阱卡
type UserTrapCard struct {
	ID       uint  `gorm:"primaryKey"`
	UserID   int64 `gorm:"uniqueIndex:idx_user_trap;not null"`
	TrapID   int   `gorm:"uniqueIndex:idx_user_trap;not null"`
	Quantity int   `gorm:"default:1"`
}

// Deck 卡组，每个玩家最多一个激活卡组
type Deck struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    int64  `gorm:"index;not null"`
	Name      string `gorm:"size:64;default:My deck"`
	IsActive  bool   `gorm:"default:false"`
	CreatedAt time.Time
}

type DeckCharacter struct {
	ID     uint `gorm:"primaryKey"`
	DeckID uint `gorm:"uniqueIndex:idx_deck_character;not null"`
	CardID int  `gorm:"uniqueIndex:idx_deck_character;not null"`
}

type DeckTrap struct {
	ID     uint `gorm:"primaryKey"`
	DeckID uint `gorm:"uniqueIndex:idx_deck_trap;not null"`
	TrapID int  `gorm:"uniqueIndex:idx_deck_trap;not null"`
}

// Match 对局记录，棋盘和手牌以 JSON 列保存
type Match struct {
	ID           string     `gorm:"primaryKey;type:uuid"`
	Player1ID    int64      `gorm:"index;not null"`
	Player2ID    int64      `gorm:"index;not null"`
	Status       string     `gorm:"size:16;index;not null"`
	TurnPlayer   int        `gorm:"default:1"`
	TurnDeadline *time.Time `gorm:"index"`
	BoardState   datatypes.JSON
	HandCharsP1  datatypes.JSON
	HandCharsP2  datatypes.JSON
	HandTrapsP1  datatypes.JSON
	HandTrapsP2  datatypes.JSON
	UsedCharsP1  datatypes.JSON
	UsedCharsP2  datatypes.JSON
	UsedTrapsP1  datatypes.JSON
	UsedTrapsP2  datatypes.JSON
	Winner       int       `gorm:"default:0"`
	CreatedAt    time.Time `gorm:"index"`
}

// MatchMove 只追加的对局日志
type MatchMove struct {
	ID        uint           `gorm:"primaryKey"`
	MatchID   string         `gorm:"type:uuid;index;not null"`
	Player    int            `gorm:"not null"`
	MoveType  string         `gorm:"size:16;not null"`
	Payload   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time
}

// MatchQueueEntry 匹配队列，每个玩家最多一条
type MatchQueueEntry struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    int64     `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"index"`
}

// All lists every table for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&CharacterCard{},
		&TrapCard{},
		&UserCharacterCard{},
		&UserTrapCard{},
		&Deck{},
		&DeckCharacter{},
		&DeckTrap{},
		&Match{},
		&MatchMove{},
		&MatchQueueEntry{},
	}
}
