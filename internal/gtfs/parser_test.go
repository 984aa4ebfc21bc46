package gtfs

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleFeed = map[string]string{
	"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n" +
		"NXWM,National Express West Midlands,https://nxbus.co.uk,Europe/London\n",
	"routes.txt": "route_id,agency_id,route_short_name,route_long_name,route_type,route_color\n" +
		"R7,NXWM,7,Birmingham - Perry Barr,3,FF0000\n" +
		"R65,NXWM,65,Birmingham - Kingstanding,3\n",
	"stops.txt": "stop_id,stop_code,stop_name,stop_lat,stop_lon\n" +
		"S1,43001,Aston Cross,52.4980,-1.8880\n" +
		"S2,43002,Aston Hall,52.5010,-1.8850\n" +
		"S3,43003,Broken Stop,abc,-1.8900\n",
	"trips.txt": "route_id,service_id,trip_id,shape_id\n" +
		"R7,WK,T1,SH1\n",
	"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"T1,08:02:00,08:02:00,S2,2\n" +
		"T1,08:00:00,08:00:00,S1,1\n",
	"shapes.txt": "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\n" +
		"SH1,52.5010,-1.8850,2\n" +
		"SH1,52.4980,-1.8880,1\n",
	"feed_info.txt": "feed_publisher_name\nTfWM\n",
}

func writeFeed(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func assertSampleFeed(t *testing.T, data *Data) {
	t.Helper()

	require.Len(t, data.Agencies, 1)
	assert.Equal(t, "NXWM", data.Agencies[0].AgencyID)

	require.Len(t, data.Routes, 2)
	assert.Equal(t, "7", data.Routes[0].RouteShortName)
	assert.Equal(t, CSVInt(3), data.Routes[0].RouteType)
	assert.Equal(t, "FF0000", data.Routes[0].RouteColor)
	assert.Equal(t, "", data.Routes[1].RouteColor, "short rows leave trailing columns empty")

	require.Len(t, data.Stops, 3)
	assert.Equal(t, "abc", data.Stops[2].StopLat)

	require.Len(t, data.StopTimes, 2)
	assert.Equal(t, "S1", data.StopTimes[0].StopID, "stop times are ordered by sequence")

	require.Len(t, data.Shapes["SH1"], 2)
	assert.Equal(t, "52.4980", data.Shapes["SH1"][0].ShapePtLat)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFeed(t, dir, sampleFeed)

	data, err := LoadDir(dir)
	require.NoError(t, err)
	assertSampleFeed(t, data)
}

func TestLoadDirMissing(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestLoadDirStripsByteOrderMark(t *testing.T) {
	dir := t.TempDir()
	writeFeed(t, dir, map[string]string{
		"stops.txt": "\xEF\xBB\xBFstop_id,stop_name,stop_lat,stop_lon\nS1,Aston,52.4975,-1.8890\n",
	})

	data, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, data.Stops, 1)
	assert.Equal(t, "S1", data.Stops[0].StopID)
}

func TestLoadDirSkipsUnreadableTables(t *testing.T) {
	dir := t.TempDir()
	writeFeed(t, dir, map[string]string{
		"routes.txt": "",
		"stops.txt":  "stop_id,stop_lat,stop_lon\nS1,52.4975,-1.8890\n",
	})

	data, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, data.Routes)
	assert.Len(t, data.Stops, 1)
}

func TestLoadZip(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "feed.zip")
	writeZip(t, zipPath, sampleFeed)

	data, err := LoadZip(zipPath)
	require.NoError(t, err)
	assertSampleFeed(t, data)
}

func TestStopPoint(t *testing.T) {
	p, ok := Stop{StopLat: " 52.4975", StopLon: "-1.8890 "}.Point()
	require.True(t, ok)
	assert.InDelta(t, 52.4975, p.Lat, 1e-9)

	_, ok = Stop{StopLat: "abc", StopLon: "-1.8890"}.Point()
	assert.False(t, ok)

	_, ok = Stop{StopLat: "95", StopLon: "0"}.Point()
	assert.False(t, ok)

	_, ok = Stop{StopLat: "NaN", StopLon: "-1.8890"}.Point()
	assert.False(t, ok)

	_, ok = Stop{StopLat: "52.4975", StopLon: "Infinity"}.Point()
	assert.False(t, ok)
}

func TestLoadDirShapeRowsWithBrokenCoordinates(t *testing.T) {
	dir := t.TempDir()
	writeFeed(t, dir, map[string]string{
		"shapes.txt": "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence,shape_dist_traveled\n" +
			"SH1,52.4976,-1.889,1,0\n" +
			"SH1,NaN,-1.889,2,NaN\n" +
			"SH1,abc,xyz,3,abc\n" +
			"SH1,Inf,-1.889,4,Inf\n" +
			"SH1,60,-1.889,5,12.5\n",
	})

	data, err := LoadDir(dir)
	require.NoError(t, err)
	points := data.Shapes["SH1"]
	require.Len(t, points, 5)

	valid := make([]bool, len(points))
	for i, sp := range points {
		_, valid[i] = sp.Point()
	}
	assert.Equal(t, []bool{true, false, false, false, true}, valid)

	assert.Equal(t, "abc", points[2].ShapePtLat, "broken text is kept, not read as 0")
	assert.Equal(t, CSVFloat(0), points[1].ShapeDistTraveled)
	assert.Equal(t, CSVFloat(0), points[3].ShapeDistTraveled)
	assert.Equal(t, CSVFloat(12.5), points[4].ShapeDistTraveled)
}

func TestStopTimesByTrip(t *testing.T) {
	data := &Data{StopTimes: []StopTime{
		{TripID: "A", StopID: "1", StopSequence: 1},
		{TripID: "B", StopID: "9", StopSequence: 1},
		{TripID: "A", StopID: "2", StopSequence: 2},
	}}

	byTrip := data.StopTimesByTrip()
	require.Len(t, byTrip["A"], 2)
	assert.Equal(t, "2", byTrip["A"][1].StopID)
	assert.Len(t, byTrip["B"], 1)
}
