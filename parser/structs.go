package parser

import (
	"github.com/paulmach/osm"
	. "github.com/ttpr0/go-gridmaker/util"
)

//*******************************************
// parser structs
//*******************************************

// _BoundaryScan collects the OSM objects making up the selected boundary
// relations across the scanning passes.
type _BoundaryScan struct {
	relations List[*osm.Relation]
	props     Dict[osm.RelationID, Dict[string, any]]
	ways      Dict[osm.WayID, *osm.Way]
	nodes     Dict[osm.NodeID, *osm.Node]
}

func _NewBoundaryScan() *_BoundaryScan {
	return &_BoundaryScan{
		relations: NewList[*osm.Relation](100),
		props:     NewDict[osm.RelationID, Dict[string, any]](100),
		ways:      NewDict[osm.WayID, *osm.Way](1000),
		nodes:     NewDict[osm.NodeID, *osm.Node](10000),
	}
}

// OSM packages the collected objects. Way nodes get their coordinates.
func (self *_BoundaryScan) OSM() *osm.OSM {
	o := &osm.OSM{
		Nodes:     make(osm.Nodes, 0, len(self.nodes)),
		Ways:      make(osm.Ways, 0, len(self.ways)),
		Relations: osm.Relations(self.relations),
	}
	for _, node := range self.nodes {
		o.Nodes = append(o.Nodes, node)
	}
	for _, way := range self.ways {
		for i, wn := range way.Nodes {
			if node, ok := self.nodes[wn.ID]; ok {
				way.Nodes[i].Lat = node.Lat
				way.Nodes[i].Lon = node.Lon
			}
		}
		o.Ways = append(o.Ways, way)
	}
	return o
}
