package props

// Property keys read by the compute engine.
const (
	ProcessKey       = "process.key"
	ProcessIndex     = "process.index"
	ProcessSharedDir = "process.sharedDir"

	PathHome = "path.home"
	PathData = "path.data"
	PathTemp = "path.temp"

	DBURL      = "db.url"
	DBUser     = "db.user"
	DBPassword = "db.password"

	ClusterEnabled     = "cluster.enabled"
	ClusterNodeType    = "cluster.node.type"
	ClusterNodeHost    = "cluster.node.host"
	ClusterNodePort    = "cluster.node.port"
	ClusterHosts       = "cluster.hosts"
	ClusterJoinTimeout = "cluster.join.timeout"

	CEWorkerCount      = "ce.workerCount"
	CEWorkerPoll       = "ce.workers.pollInterval"
	CECleaningSchedule = "ce.cleaning.schedule"
	CEHTTPHost         = "ce.http.host"
	CEHTTPPort         = "ce.http.port"
	CEMinSchemaVersion = "ce.schema.minVersion"
)

// Catalog lists every known key. Environment feeders use it to restore the
// case of keys such as process.sharedDir.
var Catalog = []string{
	ProcessKey, ProcessIndex, ProcessSharedDir,
	PathHome, PathData, PathTemp,
	DBURL, DBUser, DBPassword,
	ClusterEnabled, ClusterNodeType, ClusterNodeHost, ClusterNodePort, ClusterHosts, ClusterJoinTimeout,
	CEWorkerCount, CEWorkerPoll, CECleaningSchedule, CEHTTPHost, CEHTTPPort, CEMinSchemaVersion,
}
