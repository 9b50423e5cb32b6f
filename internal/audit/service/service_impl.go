package service

import (
	"context"

	auditdomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/audit/domain"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/auditcontext"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, entry auditdomain.Entry) {
	if err := s.RecordTx(ctx, s.db, entry); err != nil {
		s.log.Warn("audit record failed",
			zap.String("action", entry.Action),
			zap.String("target_id", entry.TargetID),
			zap.Error(err))
	}
}

func (s *Service) RecordTx(ctx context.Context, tx *gorm.DB, entry auditdomain.Entry) error {
	row := &auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  string(auditdomain.ActorTypeSystem),
		Action:     entry.Action,
		TargetType: entry.TargetType,
		Metadata:   datatypes.JSONMap(entry.Metadata),
	}
	if row.Metadata == nil {
		row.Metadata = datatypes.JSONMap{}
	}
	if entry.TargetID != "" {
		targetID := entry.TargetID
		row.TargetID = &targetID
	}
	if actorType, actorID := auditcontext.ActorFromContext(ctx); actorType != "" {
		row.ActorType = actorType
		if actorID != "" {
			row.ActorID = &actorID
		}
	}
	if ip := auditcontext.IPAddressFromContext(ctx); ip != "" {
		row.IPAddress = &ip
	}
	if ua := auditcontext.UserAgentFromContext(ctx); ua != "" {
		row.UserAgent = &ua
	}
	return s.repo.Insert(ctx, tx, row)
}

func (s *Service) List(ctx context.Context, filter auditdomain.ListFilter) ([]*auditdomain.AuditLog, error) {
	return s.repo.List(ctx, s.db, filter)
}
