package segment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/segmenter/internal/segment"
)

func TestService_Save(t *testing.T) {
	type testCase struct {
		name      string
		run       *segment.Run
		setupMock func(m *segment.MockRepository)
		wantErr   bool
	}

	fixedID := uuid.New()

	tests := []testCase{
		{
			name: "Assigns ID",
			run:  &segment.Run{Source: "retail.csv"},
			setupMock: func(m *segment.MockRepository) {
				m.EXPECT().
					SaveRun(gomock.Any(), gomock.Any(), gomock.Len(3)).
					DoAndReturn(func(_ context.Context, run *segment.Run, _ []segment.Profile) error {
						assert.NotEqual(t, uuid.Nil, run.ID)
						assert.False(t, run.CreatedAt.IsZero())
						assert.Equal(t, 3, run.Customers)
						return nil
					})
			},
		},
		{
			name: "Keeps Existing ID",
			run:  &segment.Run{ID: fixedID},
			setupMock: func(m *segment.MockRepository) {
				m.EXPECT().
					SaveRun(gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, run *segment.Run, _ []segment.Profile) error {
						assert.Equal(t, fixedID, run.ID)
						return nil
					})
			},
		},
		{
			name: "RepoError",
			run:  &segment.Run{},
			setupMock: func(m *segment.MockRepository) {
				m.EXPECT().
					SaveRun(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(errors.New("db error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := segment.NewMockRepository(ctrl)
			tt.setupMock(repo)

			svc := segment.NewService(repo)
			err := svc.Save(context.Background(), tt.run, segment.Assemble(vectors(), nil, nil))

			if tt.wantErr {
				assert.ErrorContains(t, err, "db error")
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestService_Profiles(t *testing.T) {
	runID := uuid.New()
	filter := segment.ListFilter{Country: new("France")}

	type testCase struct {
		name      string
		setupMock func(m *segment.MockRepository)
		wantLen   int
		wantErr   error
	}

	tests := []testCase{
		{
			name: "Success",
			setupMock: func(m *segment.MockRepository) {
				m.EXPECT().GetRun(gomock.Any(), runID).Return(&segment.Run{ID: runID}, nil)
				m.EXPECT().
					ListProfiles(gomock.Any(), runID, filter).
					Return([]segment.Profile{{CustomerID: "A", PrimaryCountry: "France"}}, nil)
			},
			wantLen: 1,
		},
		{
			name: "Unknown Run",
			setupMock: func(m *segment.MockRepository) {
				m.EXPECT().GetRun(gomock.Any(), runID).Return(nil, segment.ErrNotFound)
			},
			wantErr: segment.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := segment.NewMockRepository(ctrl)
			tt.setupMock(repo)

			svc := segment.NewService(repo)
			got, err := svc.Profiles(context.Background(), runID, filter)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestService_Latest(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := segment.NewMockRepository(ctrl)
	want := &segment.Run{ID: uuid.New()}
	repo.EXPECT().LatestRun(gomock.Any()).Return(want, nil)

	got, err := segment.NewService(repo).Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
