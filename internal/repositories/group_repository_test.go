package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-service/internal/models"
)

var groupRowColumns = []string{"id", "team_id", "name", "members", "created_at"}

func TestCreateGroupDuplicateName(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGroupRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO chat_groups")).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.CreateGroup(context.Background(), models.ChatGroup{ID: "g1", TeamID: "team-1", Name: models.TeamChatName})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMemberAlreadyPresentReturnsGroup(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGroupRepo(db)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SET members = array_append(members, $3)")).
		WithArgs("team-1", "g1", "u1").
		WillReturnRows(sqlmock.NewRows(groupRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("FROM chat_groups WHERE id=$1 AND team_id=$2")).
		WithArgs("g1", "team-1").
		WillReturnRows(sqlmock.NewRows(groupRowColumns).AddRow("g1", "team-1", models.TeamChatName, "{u1,u2}", now))

	group, err := repo.AddMember(context.Background(), "team-1", "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, pq.StringArray{"u1", "u2"}, group.Members)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetGroupNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGroupRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM chat_groups WHERE id=$1 AND team_id=$2")).
		WithArgs("missing", "team-1").
		WillReturnRows(sqlmock.NewRows(groupRowColumns))

	_, err := repo.GetGroup(context.Background(), "team-1", "missing")
	assert.ErrorIs(t, err, ErrGroupNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
