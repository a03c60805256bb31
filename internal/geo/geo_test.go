package geo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	paris = Point{Latitude: 48.8566, Longitude: 2.3522}
	lyon  = Point{Latitude: 45.7640, Longitude: 4.8357}
)

func TestDistanceIdentity(t *testing.T) {
	require.Zero(t, Distance(paris, paris))
}

func TestDistanceSymmetry(t *testing.T) {
	require.InDelta(t, Distance(paris, lyon), Distance(lyon, paris), 1e-9)
}

func TestDistanceParisLyon(t *testing.T) {
	d := Distance(paris, lyon)
	require.InDelta(t, 392.0, d, 5.0)
}

func TestDistanceNonNegative(t *testing.T) {
	a := Point{Latitude: -33.8688, Longitude: 151.2093}
	b := Point{Latitude: 40.7128, Longitude: -74.0060}
	require.Greater(t, Distance(a, b), 0.0)
}

func TestBoundingBoxContainsRadius(t *testing.T) {
	minLat, maxLat, minLon, maxLon := BoundingBox(paris, 100)

	require.Less(t, minLat, paris.Latitude)
	require.Greater(t, maxLat, paris.Latitude)
	require.Less(t, minLon, paris.Longitude)
	require.Greater(t, maxLon, paris.Longitude)

	// Lyon is well outside a 100 km box around Paris.
	require.Less(t, lyon.Latitude, minLat)
}
