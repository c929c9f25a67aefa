// Package db - хранилище ledger.Ledger поверх PostgreSQL (pgx/v5).
package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/rewear-api/internal/config"
	"github.com/rajivgeraev/rewear-api/internal/ledger"
)

//go:embed schema.sql
var schemaSQL string

// Store представляет пул соединений с базой данных
type Store struct {
	pool *pgxpool.Pool
	log  *logrus.Entry
}

var _ ledger.Ledger = (*Store)(nil)

// Open подключается к базе данных и применяет схему
func Open(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*Store, error) {
	log.WithFields(logrus.Fields{
		"host":     cfg.DatabaseConfig.Host,
		"database": cfg.DatabaseConfig.Name,
	}).Info("Подключение к базе данных")

	// Создаем контекст с таймаутом для подключения
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Настраиваем конфигурацию пула соединений
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка при разборе URL базы данных: %w", err)
	}
	poolConfig.MaxConns = cfg.DatabaseConfig.MaxConns
	poolConfig.MinConns = cfg.DatabaseConfig.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании пула соединений: %w", err)
	}

	// Проверяем соединение
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка при проверке соединения: %w", err)
	}

	if _, err = pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка при применении схемы: %w", err)
	}

	log.Info("✅ Успешное подключение к базе данных")
	return &Store{pool: pool, log: log}, nil
}

// Close закрывает соединение с базой данных
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InTx выполняет fn в транзакции READ COMMITTED. Строки, которые читает движок,
// блокируются через SELECT ... FOR UPDATE, поэтому изменения балансов и
// доступности вещей сериализуются.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	defer tx.Rollback(ctx) // Откатываем транзакцию в случае ошибки

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	// Фиксируем транзакцию
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка при фиксации транзакции: %w", mapError(err))
	}
	return nil
}
