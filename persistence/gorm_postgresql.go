// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wfunc/triad/game"
	"github.com/wfunc/triad/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// DSN 拼接连接串
func DSN(host string, port int, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := DSN(host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,   // 慢SQL阈值
			LogLevel:      logger.Silent, // 日志级别
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &GormPostgreSQL{db: db}, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}

// Character 查询角色卡
func (p *GormPostgreSQL) Character(ctx context.Context, id int) (game.CharacterCard, error) {
	var c models.CharacterCard
	if err := p.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return game.CharacterCard{}, notFound(err)
	}
	return c.ToDomain(), nil
}

// Trap 查询陷阱卡
func (p *GormPostgreSQL) Trap(ctx context.Context, id int) (game.TrapCard, error) {
	var t models.TrapCard
	if err := p.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return game.TrapCard{}, notFound(err)
	}
	return t.ToDomain(), nil
}

// CreateMatch 保存新对局
func (p *GormPostgreSQL) CreateMatch(ctx context.Context, m *game.Match) error {
	return createMatch(p.db.WithContext(ctx), m)
}

func createMatch(tx *gorm.DB, m *game.Match) error {
	rec, err := models.MatchFromDomain(m)
	if err != nil {
		return err
	}
	if err := tx.Create(rec).Error; err != nil {
		return err
	}
	m.CreatedAt = rec.CreatedAt
	m.MarkClean()
	return nil
}

// LoadMatch 读取对局快照，不加锁
func (p *GormPostgreSQL) LoadMatch(ctx context.Context, id string) (*game.Match, error) {
	var rec models.Match
	if err := p.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	return rec.ToDomain()
}

// gormJournal 在同一事务中写入对局日志
type gormJournal struct {
	tx *gorm.DB
}

func (j *gormJournal) AppendMove(ctx context.Context, mv game.Move) error {
	rec, err := models.MoveFromDomain(mv)
	if err != nil {
		return err
	}
	return j.tx.WithContext(ctx).Create(rec).Error
}

// UpdateMatch 行锁 (SELECT ... FOR UPDATE) 下修改对局
func (p *GormPostgreSQL) UpdateMatch(ctx context.Context, id string, fn MatchFunc) (*game.Match, error) {
	var out *game.Match
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.Match
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&rec).Error
		if err != nil {
			return notFound(err)
		}

		m, err := rec.ToDomain()
		if err != nil {
			return err
		}
		if err := fn(&gormJournal{tx: tx}, m); err != nil {
			return err
		}

		if m.Changed() {
			if err := rec.Apply(m); err != nil {
				return err
			}
			if err := tx.Save(&rec).Error; err != nil {
				return fmt.Errorf("save match %s: %w", id, err)
			}
			m.MarkClean()
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Moves 按创建顺序返回对局日志
func (p *GormPostgreSQL) Moves(ctx context.Context, matchID string) ([]game.Move, error) {
	var recs []models.MatchMove
	err := p.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at, id").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	moves := make([]game.Move, 0, len(recs))
	for i := range recs {
		mv, err := recs[i].ToDomain()
		if err != nil {
			return nil, err
		}
		moves = append(moves, mv)
	}
	return moves, nil
}

func (p *GormPostgreSQL) playerMatches(ctx context.Context, userID int64) *gorm.DB {
	return p.db.WithContext(ctx).
		Where("player1_id = ? OR player2_id = ?", userID, userID).
		Order("created_at DESC")
}

// RecentMatches 最近的对局
func (p *GormPostgreSQL) RecentMatches(ctx context.Context, userID int64, limit int) ([]*game.Match, error) {
	var recs []models.Match
	if err := p.playerMatches(ctx, userID).Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}

	out := make([]*game.Match, 0, len(recs))
	for i := range recs {
		m, err := recs[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// OpenMatch 最新的未结束对局
func (p *GormPostgreSQL) OpenMatch(ctx context.Context, userID int64) (*game.Match, error) {
	var rec models.Match
	err := p.playerMatches(ctx, userID).
		Where("status <> ?", string(game.StatusFinished)).
		First(&rec).Error
	if err != nil {
		return nil, notFound(err)
	}
	return rec.ToDomain()
}

// ExpiredMatchIDs 超时未处理的对局
func (p *GormPostgreSQL) ExpiredMatchIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	err := p.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("status = ? AND turn_deadline < ?", string(game.StatusActive), now).
		Order("turn_deadline").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// gormQueueTx 匹配队列事务
type gormQueueTx struct {
	tx *gorm.DB
}

func (q *gormQueueTx) Enqueue(userID int64) error {
	entry := models.MatchQueueEntry{UserID: userID}
	err := q.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("enqueue %d: %w", userID, err)
	}

	// 锁住自己的队列记录，防止并发的 join 同时把它选为对手
	return q.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&entry).Error
}

func (q *gormQueueTx) EarliestOther(userID int64) (int64, bool, error) {
	var entry models.MatchQueueEntry
	err := q.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id <> ?", userID).
		Order("created_at, id").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return entry.UserID, true, nil
}

func (q *gormQueueTx) Remove(userIDs ...int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	return q.tx.Where("user_id IN ?", userIDs).Delete(&models.MatchQueueEntry{}).Error
}

func (q *gormQueueTx) ActiveDeck(userID int64) ([]int, []int, error) {
	return activeDeck(q.tx, userID)
}

func (q *gormQueueTx) CreateMatch(m *game.Match) error {
	return createMatch(q.tx, m)
}

func activeDeck(tx *gorm.DB, userID int64) ([]int, []int, error) {
	var deck models.Deck
	err := tx.Where("user_id = ? AND is_active = ?", userID, true).
		Order("id").
		First(&deck).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		deck = models.Deck{UserID: userID, Name: "My deck", IsActive: true}
		if err := tx.Create(&deck).Error; err != nil {
			return nil, nil, fmt.Errorf("create deck for %d: %w", userID, err)
		}
		return []int{}, []int{}, nil
	}
	if err != nil {
		return nil, nil, err
	}

	chars := []int{}
	traps := []int{}
	if err := tx.Model(&models.DeckCharacter{}).Where("deck_id = ?", deck.ID).Order("id").Pluck("card_id", &chars).Error; err != nil {
		return nil, nil, err
	}
	if err := tx.Model(&models.DeckTrap{}).Where("deck_id = ?", deck.ID).Order("id").Pluck("trap_id", &traps).Error; err != nil {
		return nil, nil, err
	}
	return chars, traps, nil
}

// QueueTransaction 匹配队列事务
func (p *GormPostgreSQL) QueueTransaction(ctx context.Context, fn func(tx QueueTx) error) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormQueueTx{tx: tx})
	})
}

// Dequeue 离开队列，重复调用无副作用
func (p *GormPostgreSQL) Dequeue(ctx context.Context, userID int64) error {
	return p.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.MatchQueueEntry{}).Error
}

func (p *GormPostgreSQL) IsQueued(ctx context.Context, userID int64) (bool, error) {
	var n int64
	err := p.db.WithContext(ctx).Model(&models.MatchQueueEntry{}).Where("user_id = ?", userID).Count(&n).Error
	return n > 0, err
}

// CreateUser 创建玩家
func (p *GormPostgreSQL) CreateUser(ctx context.Context, u *models.User) error {
	err := p.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (p *GormPostgreSQL) User(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	if err := p.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return models.User{}, notFound(err)
	}
	return u, nil
}

// Users 批量查询玩家
func (p *GormPostgreSQL) Users(ctx context.Context, ids ...int64) (map[int64]models.User, error) {
	out := make(map[int64]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := p.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// CommonCardIDs 普通稀有度的卡牌
func (p *GormPostgreSQL) CommonCardIDs(ctx context.Context) ([]int, []int, error) {
	chars := []int{}
	traps := []int{}
	db := p.db.WithContext(ctx)
	common := string(game.RarityCommon)
	if err := db.Model(&models.CharacterCard{}).Where("rarity = ?", common).Order("id").Pluck("id", &chars).Error; err != nil {
		return nil, nil, err
	}
	if err := db.Model(&models.TrapCard{}).Where("rarity = ?", common).Order("id").Pluck("id", &traps).Error; err != nil {
		return nil, nil, err
	}
	return chars, traps, nil
}

// GrantStarter 发放新手卡并设为激活卡组
func (p *GormPostgreSQL) GrantStarter(ctx context.Context, userID int64, chars, traps []int) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range chars {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "card_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{"quantity": gorm.Expr("user_character_cards.quantity + 1")}),
			}).Create(&models.UserCharacterCard{UserID: userID, CardID: id, Quantity: 1}).Error; err != nil {
				return err
			}
		}
		for _, id := range traps {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "trap_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{"quantity": gorm.Expr("user_trap_cards.quantity + 1")}),
			}).Create(&models.UserTrapCard{UserID: userID, TrapID: id, Quantity: 1}).Error; err != nil {
				return err
			}
		}

		// 已有激活卡组则沿用，否则新建
		var deck models.Deck
		err := tx.Where("user_id = ? AND is_active = ?", userID, true).Order("id").First(&deck).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Model(&models.Deck{}).Where("user_id = ?", userID).Update("is_active", false).Error; err != nil {
				return err
			}
			deck = models.Deck{UserID: userID, Name: "My deck", IsActive: true}
			err = tx.Create(&deck).Error
		}
		if err != nil {
			return err
		}

		for _, id := range chars {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.DeckCharacter{DeckID: deck.ID, CardID: id}).Error; err != nil {
				return err
			}
		}
		for _, id := range traps {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.DeckTrap{DeckID: deck.ID, TrapID: id}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SeedCatalog 写入卡牌目录，已存在的按 id 覆盖
func (p *GormPostgreSQL) SeedCatalog(ctx context.Context, chars []game.CharacterCard, traps []game.TrapCard) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range chars {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(models.CharacterFromDomain(c)).Error; err != nil {
				return err
			}
		}
		for _, t := range traps {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(models.TrapFromDomain(t)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
