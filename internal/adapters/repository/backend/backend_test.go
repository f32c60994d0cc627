package backend_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/cfpboard/internal/adapters/repository"
	"github.com/okian/cfpboard/internal/adapters/repository/backend"
	"github.com/okian/cfpboard/internal/config"
)

func TestOpen(t *testing.T) {
	Convey("Given default configuration", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)

		Convey("Then the memory store is opened", func() {
			st, err := backend.Open(ctx, cfg)
			So(err, ShouldBeNil)
			_, ok := st.(*repository.MemoryStore)
			So(ok, ShouldBeTrue)
			So(st.Close(), ShouldBeNil)
		})

		Convey("Then an unknown name is rejected", func() {
			cfg.Store = "redis"
			st, err := backend.Open(ctx, cfg)
			So(st, ShouldBeNil)
			So(errors.Is(err, backend.ErrUnknownStore), ShouldBeTrue)
		})

		Convey("Then postgres honours a cancelled context while waiting", func() {
			cfg.Store = config.StorePostgres
			cfg.PostgresHost = "127.0.0.1"
			cfg.PostgresPort = 1
			cfg.PostgresUser = "cfp"
			cfg.PostgresDB = "cfp"
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := backend.Open(cctx, cfg)
			So(err, ShouldNotBeNil)
		})
	})
}
