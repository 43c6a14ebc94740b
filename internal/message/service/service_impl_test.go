package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	messagedomain "github.com/smallbiznis/atelier/internal/message/domain"
	"github.com/smallbiznis/atelier/internal/migration"
)

func newTestService(t *testing.T) (messagedomain.Service, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(7)
	require.NoError(t, err)

	svc := NewService(Params{DB: db, Log: zap.NewNop(), GenID: node})
	return svc, node
}

func TestAppend_Validation(t *testing.T) {
	svc, node := newTestService(t)
	ctx := context.Background()

	_, err := svc.Append(ctx, messagedomain.Message{Body: "hello"})
	assert.ErrorIs(t, err, messagedomain.ErrInvalidOrderID)

	_, err = svc.Append(ctx, messagedomain.Message{OrderID: node.Generate(), Body: "   "})
	assert.ErrorIs(t, err, messagedomain.ErrEmptyBody)
}

func TestAppend_DefaultsToChatKind(t *testing.T) {
	svc, node := newTestService(t)

	msg, err := svc.Append(context.Background(), messagedomain.Message{
		OrderID: node.Generate(),
		Author:  "admin",
		Body:    "please confirm the fabric choice",
	})
	require.NoError(t, err)
	assert.Equal(t, messagedomain.MessageKindChat, msg.Kind)
	assert.NotZero(t, msg.ID)
}

func TestListByOrder_ReturnsThreadInOrder(t *testing.T) {
	svc, node := newTestService(t)
	ctx := context.Background()
	orderID := node.Generate()

	for _, body := range []string{"first", "second", "third"} {
		_, err := svc.Append(ctx, messagedomain.Message{OrderID: orderID, Author: "admin", Body: body})
		require.NoError(t, err)
	}
	_, err := svc.Append(ctx, messagedomain.Message{OrderID: node.Generate(), Author: "admin", Body: "other thread"})
	require.NoError(t, err)

	messages, err := svc.ListByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Body)
	assert.Equal(t, "third", messages[2].Body)
}

func TestFindSystemByBody_MatchesExactSystemMessage(t *testing.T) {
	svc, node := newTestService(t)
	ctx := context.Background()
	orderID := node.Generate()

	_, err := svc.Append(ctx, messagedomain.Message{
		OrderID: orderID,
		Kind:    messagedomain.MessageKindSystem,
		Author:  "system",
		Body:    "Order handed off to logistics.",
	})
	require.NoError(t, err)
	_, err = svc.Append(ctx, messagedomain.Message{OrderID: orderID, Author: "admin", Body: "Order handed off to logistics."})
	require.NoError(t, err)

	found, err := svc.FindSystemByBody(ctx, orderID, "Order handed off to logistics.")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, messagedomain.MessageKindSystem, found.Kind)

	missing, err := svc.FindSystemByBody(ctx, orderID, "No such marker.")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
