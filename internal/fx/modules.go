package fx

import (
	"squad-tracker/internal/api"
	"squad-tracker/internal/config"
	"squad-tracker/internal/database"
	"squad-tracker/internal/history"
	"squad-tracker/internal/logger"
	"squad-tracker/internal/server"
	"squad-tracker/internal/session"
	"squad-tracker/internal/store"
	"squad-tracker/internal/syncer"

	"go.uber.org/fx"
)

func ProvideSyncRemote(c *api.RemoteClient) syncer.RemoteStore { return c }

func ProvideSessionRemote(c *api.RemoteClient) session.RemoteStore { return c }

func ProvideHistorySource(s *session.Session) history.Source { return s }

func ProvideImporter(c *api.RemoteClient) history.Importer { return c }

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	fx.Provide(store.NewStateStore),
	// remote store client
	fx.Provide(api.NewRemoteClient),
	fx.Provide(ProvideSyncRemote),
	fx.Provide(ProvideSessionRemote),
	fx.Provide(syncer.NewSyncer),
	// core
	fx.Provide(session.New),
	fx.Provide(ProvideHistorySource),
	fx.Provide(ProvideImporter),
	fx.Provide(history.NewManager),
	// read surface
	fx.Provide(server.New),
)
