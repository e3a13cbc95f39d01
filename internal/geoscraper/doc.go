// Package geoscraper acquires tagged map features from OpenStreetMap through
// the Overpass API and turns them into categorised spatial points.
package geoscraper
