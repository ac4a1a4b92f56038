package rankingexport

import (
	"bytes"
	"context"
	"errors"
	"testing"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeSource struct {
	global rankingdomain.GlobalLeaderboard
	maps   map[rankingdomain.MapID]rankingdomain.MapLeaderboard
	ids    []rankingdomain.MapID
	err    error
}

func (f *fakeSource) GetGlobalLeaderboard(context.Context) (rankingdomain.GlobalLeaderboard, error) {
	return f.global, f.err
}

func (f *fakeSource) ListMaps(context.Context) ([]rankingdomain.MapID, error) {
	return f.ids, nil
}

func (f *fakeSource) GetMapLeaderboard(_ context.Context, id rankingdomain.MapID) (rankingdomain.MapLeaderboard, error) {
	return f.maps[id], nil
}

func sampleSource() *fakeSource {
	return &fakeSource{
		global: rankingdomain.GlobalLeaderboard{Rows: []rankingdomain.GlobalRow{
			{ParticipantID: "p1", DisplayName: "Speedy", Points: 1600, Rank: 1},
			{ParticipantID: "p2", DisplayName: "p2", Points: 1367, Rank: 2},
		}},
		ids: []rankingdomain.MapID{"m1", "ice/rink:2"},
		maps: map[rankingdomain.MapID]rankingdomain.MapLeaderboard{
			"m1": {MapID: "m1", Rows: []rankingdomain.MapRow{
				{ParticipantID: "p1", DisplayName: "Speedy", TimeMs: 40000, Time: "0:40.000", Points: 1000, Rank: 1},
				{ParticipantID: "p2", DisplayName: "p2", TimeMs: 45000, Time: "0:45.000", Points: 600, Rank: 2},
			}},
			"ice/rink:2": {MapID: "ice/rink:2", Rows: []rankingdomain.MapRow{
				{ParticipantID: "p2", DisplayName: "p2", TimeMs: 61234, Time: "1:01.234", Points: 1000, Rank: 1},
			}},
		},
	}
}

func TestCollect(t *testing.T) {
	st, err := Collect(context.Background(), sampleSource())
	require.NoError(t, err)
	require.Len(t, st.Maps, 2)
	assert.Equal(t, rankingdomain.MapID("m1"), st.Maps[0].MapID)

	src := sampleSource()
	src.err = errors.New("down")
	_, err = Collect(context.Background(), src)
	assert.Error(t, err)
}

func TestWriteXLSX(t *testing.T) {
	st, err := Collect(context.Background(), sampleSource())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, st))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Global", "m1", "ice_rink_2"}, f.GetSheetList())

	global, err := f.GetRows("Global")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Rank", "Participant", "Name", "Points"},
		{"1", "p1", "Speedy", "1600"},
		{"2", "p2", "p2", "1367"},
	}, global)

	m, err := f.GetRows("ice_rink_2")
	require.NoError(t, err)
	require.Len(t, m, 2)
	assert.Equal(t, []string{"1", "p2", "p2", "1:01.234", "61234", "1000"}, m[1])
}

func TestUniqueSheetName(t *testing.T) {
	used := map[string]bool{"global": true}
	assert.Equal(t, "a_b", uniqueSheetName("a/b", used))
	assert.Equal(t, "a_b~2", uniqueSheetName("a:b", used))
	assert.Equal(t, "global~2", uniqueSheetName("global", used))
	assert.Equal(t, "map", uniqueSheetName("''", used))

	long := uniqueSheetName("a-very-long-map-identifier-that-overflows", used)
	assert.LessOrEqual(t, len(long), maxSheetName)
}

func TestRenderChart(t *testing.T) {
	pngMagic := []byte("\x89PNG\r\n\x1a\n")

	tests := []struct {
		name  string
		board rankingdomain.GlobalLeaderboard
	}{
		{name: "standings", board: sampleSource().global},
		{name: "single player", board: rankingdomain.GlobalLeaderboard{Rows: []rankingdomain.GlobalRow{{ParticipantID: "p1", DisplayName: "p1", Points: 1000, Rank: 1}}}},
		{name: "empty", board: rankingdomain.GlobalLeaderboard{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := RenderChart(tt.board, 0, DefaultPalette)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(img, pngMagic))
		})
	}
}
