package parser

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmgeojson"
	"github.com/paulmach/osm/osmpbf"
	"github.com/pkg/errors"
	"github.com/ttpr0/go-gridmaker/geo"
	. "github.com/ttpr0/go-gridmaker/util"
	"github.com/twpayne/go-geos"
	"golang.org/x/exp/slog"
)

//*******************************************
// osm boundaries
//*******************************************

// LoadOSMBoundaries reads the boundary relations selected by decoder from
// an OSM PBF extract. Coordinates stay in lon/lat.
//
// The file is scanned three times: relations, then their member ways,
// then the nodes of those ways.
func LoadOSMBoundaries(ctx context.Context, gctx *geos.Context, pbf_file string, decoder IBoundaryDecoder) ([]geo.Feature, error) {
	file, err := os.Open(pbf_file)
	if err != nil {
		return nil, errors.Wrap(err, "open pbf")
	}
	defer file.Close()

	scan := _NewBoundaryScan()
	passes := []func(*osmpbf.Scanner, *_BoundaryScan){
		func(s *osmpbf.Scanner, b *_BoundaryScan) { _RelationHandler(s, decoder, b) },
		_WayHandler,
		_NodeHandler,
	}
	for _, pass := range passes {
		if _, err := file.Seek(0, 0); err != nil {
			return nil, errors.Wrap(err, "rewind pbf")
		}
		scanner := osmpbf.New(ctx, file, runtime.GOMAXPROCS(-1))
		pass(scanner, scan)
		err := scanner.Err()
		scanner.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", pbf_file)
		}
	}
	slog.Debug(fmt.Sprintf("boundaries: %d relations, %d ways, %d nodes", scan.relations.Length(), scan.ways.Length(), scan.nodes.Length()))

	fc, err := osmgeojson.Convert(scan.OSM(), osmgeojson.NoMeta(true), osmgeojson.NoRelationMembership(true))
	if err != nil {
		return nil, errors.Wrap(err, "build boundary geometries")
	}
	features := NewList[geo.Feature](len(fc.Features))
	for _, f := range fc.Features {
		id, ok := f.ID.(string)
		if !ok {
			continue
		}
		var ref int64
		if _, err := fmt.Sscanf(id, "relation/%d", &ref); err != nil {
			continue
		}
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			slog.Warn(fmt.Sprintf("boundary %s is not a closed area, skipped", id))
			continue
		}
		g, err := geo.FromOrb(gctx, f.Geometry)
		if err != nil {
			slog.Warn(fmt.Sprintf("boundary %s skipped: %v", id, err))
			continue
		}
		features.Add(geo.NewFeature(g, scan.props[osm.RelationID(ref)]))
	}
	return features, nil
}

//*******************************************
// osm handler methods
//*******************************************

func _RelationHandler(scanner *osmpbf.Scanner, decoder IBoundaryDecoder, scan *_BoundaryScan) {
	scanner.SkipNodes = true
	scanner.SkipWays = true
	for scanner.Scan() {
		relation, ok := scanner.Object().(*osm.Relation)
		if !ok {
			continue
		}
		tags := Dict[string, string](relation.TagMap())
		if !decoder.IsValidBoundary(tags) {
			continue
		}
		scan.relations.Add(relation)
		scan.props[relation.ID] = decoder.DecodeProperties(tags)
		for _, member := range relation.Members {
			if member.Type == osm.TypeWay {
				scan.ways[osm.WayID(member.Ref)] = nil
			}
		}
	}
}

func _WayHandler(scanner *osmpbf.Scanner, scan *_BoundaryScan) {
	scanner.SkipNodes = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		way, ok := scanner.Object().(*osm.Way)
		if !ok || !scan.ways.ContainsKey(way.ID) {
			continue
		}
		scan.ways[way.ID] = way
		for _, wn := range way.Nodes {
			scan.nodes[wn.ID] = nil
		}
	}
	for id, way := range scan.ways {
		if way == nil {
			delete(scan.ways, id)
		}
	}
}

func _NodeHandler(scanner *osmpbf.Scanner, scan *_BoundaryScan) {
	scanner.SkipWays = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		node, ok := scanner.Object().(*osm.Node)
		if !ok || !scan.nodes.ContainsKey(node.ID) {
			continue
		}
		scan.nodes[node.ID] = node
	}
	for id, node := range scan.nodes {
		if node == nil {
			delete(scan.nodes, id)
		}
	}
}
