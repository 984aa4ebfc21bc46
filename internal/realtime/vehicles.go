package realtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"

	"github.com/aston-transit/backend/internal/geo"
)

// Client reads a GTFS-RT VehiclePositions feed
type Client struct {
	url    string
	client *http.Client
}

// NewClient creates a client for the feed at url
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchVehicles fetches the feed and returns every vehicle that reports a position
func (c *Client) FetchVehicles(ctx context.Context) ([]Vehicle, error) {
	feed, err := c.fetchFeed(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vehicle positions: %w", err)
	}

	vehicles := make([]Vehicle, 0, len(feed.Entity))
	for _, entity := range feed.Entity {
		if entity.Vehicle == nil {
			continue
		}
		v := toVehicle(entity)
		if !v.hasPosition {
			continue
		}
		vehicles = append(vehicles, v)
	}

	log.Debug().Int("vehicles", len(vehicles)).Msg("Fetched vehicle positions")
	return vehicles, nil
}

func toVehicle(entity *gtfsrt.FeedEntity) Vehicle {
	vp := entity.Vehicle
	v := Vehicle{}

	if vp.Vehicle != nil {
		v.VehicleID = vp.Vehicle.Id
		if vp.Vehicle.Label != nil {
			v.Label = *vp.Vehicle.Label
		}
	}
	if v.VehicleID != nil && *v.VehicleID != "" {
		v.VehicleKey = *v.VehicleID
	} else {
		v.VehicleKey = "entity:" + entity.GetId()
	}

	if vp.Trip != nil {
		v.TripID = vp.Trip.TripId
		v.RouteID = vp.Trip.RouteId
	}
	v.StopID = vp.StopId

	if vp.Position != nil && vp.Position.Latitude != nil && vp.Position.Longitude != nil {
		v.Lat = float64(*vp.Position.Latitude)
		v.Lng = float64(*vp.Position.Longitude)
		v.hasPosition = geo.IsValid(v.Point())
		if vp.Position.Bearing != nil {
			b := float64(*vp.Position.Bearing)
			v.Bearing = &b
		}
	}

	if vp.CurrentStatus != nil {
		if status, ok := StatusMap[int32(*vp.CurrentStatus)]; ok {
			v.Status = status
		}
	}

	if vp.Timestamp != nil {
		ts := time.Unix(int64(*vp.Timestamp), 0).UTC()
		v.Timestamp = &ts
	}

	return v
}

// WithinRadius keeps the vehicles within bufferMeters of center, nearest first,
// and fills in their distance
func WithinRadius(vehicles []Vehicle, center geo.Point, bufferMeters float64) []Vehicle {
	out := make([]Vehicle, 0)
	for _, v := range vehicles {
		d := geo.Haversine(center, v.Point())
		if d <= bufferMeters {
			v.DistanceM = d
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceM < out[j].DistanceM
	})
	return out
}

// fetchFeed fetches and decodes the protobuf feed
func (c *Client) fetchFeed(ctx context.Context) (*gtfsrt.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	feed := &gtfsrt.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("failed to parse protobuf: %w", err)
	}

	return feed, nil
}
