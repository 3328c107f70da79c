package driver

// IndexQueries are issued by BuildIndices. Every persisted node carries
// the run it belongs to.
var IndexQueries = []string{
	"CREATE INDEX ON :MatchRun(uuid);",
	"CREATE INDEX ON :Footprint(run_id);",
	"CREATE INDEX ON :Footprint(node_id);",
	"CREATE INDEX ON :Component(run_id);",
}

const (
	SaveMatchRunQuery = `
		MERGE (r:MatchRun {uuid: $uuid})
		SET r.created_at = $created_at,
			r.cut_threshold = $cut_threshold,
			r.mode = $mode,
			r.class_threshold = $class_threshold,
			r.poly1_count = $poly1_count,
			r.poly2_count = $poly2_count,
			r.components = $components,
			r.cut_links = $cut_links
		RETURN r.uuid AS uuid
	`

	SaveFootprintsQuery = `
		UNWIND $footprints AS f
		MERGE (n:Footprint {run_id: $run_id, node_id: f.node_id})
		SET n.side = f.side,
			n.poly_idx = f.poly_idx,
			n.comp_idx = f.comp_idx,
			n.relation = f.relation,
			n.cut_link = f.cut_link,
			n.area = f.area,
			n.cd_class = f.cd_class,
			n.bd_class = f.bd_class,
			n.class_10 = f.class_10
		RETURN count(n) AS saved
	`

	SaveCorrespondencesQuery = `
		UNWIND $edges AS e
		MATCH (s:Footprint {run_id: $run_id, node_id: e.source})
		MATCH (t:Footprint {run_id: $run_id, node_id: e.target})
		MERGE (s)-[c:CORRESPONDS]->(t)
		SET c.energy = e.energy,
			c.cut = e.cut,
			c.comp_idx = e.comp_idx
		RETURN count(c) AS saved
	`

	SaveComponentsQuery = `
		MATCH (r:MatchRun {uuid: $run_id})
		UNWIND $components AS c
		MERGE (k:Component {run_id: $run_id, comp_idx: c.comp_idx})
		SET k.relation = c.relation,
			k.poly1_set = c.poly1_set,
			k.poly2_set = c.poly2_set
		MERGE (r)-[:HAS_COMPONENT]->(k)
		WITH k, c
		UNWIND c.members AS member
		MATCH (f:Footprint {run_id: $run_id, node_id: member})
		MERGE (k)-[:HAS_MEMBER]->(f)
		RETURN count(DISTINCT k) AS saved
	`

	GetMatchRunQuery = `
		MATCH (r:MatchRun {uuid: $uuid})
		RETURN r.uuid AS uuid,
			r.created_at AS created_at,
			r.cut_threshold AS cut_threshold,
			r.mode AS mode,
			r.class_threshold AS class_threshold,
			r.poly1_count AS poly1_count,
			r.poly2_count AS poly2_count,
			r.components AS components,
			r.cut_links AS cut_links
	`

	GetRunRelationCountsQuery = `
		MATCH (:MatchRun {uuid: $uuid})-[:HAS_COMPONENT]->(k:Component)
		RETURN k.relation AS relation, count(k) AS count
		ORDER BY relation
	`

	DeleteMatchRunQuery = `
		MATCH (n)
		WHERE n.run_id = $uuid OR (n:MatchRun AND n.uuid = $uuid)
		DETACH DELETE n
	`
)
