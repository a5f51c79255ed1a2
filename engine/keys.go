package engine

import (
	"github.com/GoCodeAlone/cecontainer"
	"github.com/GoCodeAlone/cecontainer/cluster"
)

// Platform level.
const (
	KeyProps            cecontainer.Key = "props"
	KeyLogger           cecontainer.Key = "logger"
	KeyClock            cecontainer.Key = "clock"
	KeyUUIDFactory      cecontainer.Key = "uuidFactory"
	KeyServerFileSystem cecontainer.Key = "serverFileSystem"
	KeyTempFolder       cecontainer.Key = "tempFolder"
	KeyMetricsRegistry  cecontainer.Key = "metricsRegistry"
	KeyDatabase         cecontainer.Key = "database"
	KeyPropertiesDao    cecontainer.Key = "propertiesDao"
	KeyStopFlagWatcher  cecontainer.Key = "stopFlagWatcher"
)

// Migration level.
const (
	KeyDialect            cecontainer.Key = "databaseDialect"
	KeySchemaVersionCheck cecontainer.Key = "schemaVersionCheck"
)

// Services level.
const (
	KeyServerIdentity   cecontainer.Key = "serverIdentity"
	KeyStatus           cecontainer.Key = "ceStatus"
	KeyHealthAggregator cecontainer.Key = "healthAggregator"
)

// Tasks level.
const (
	KeyConfiguration       cecontainer.Key = "ceConfiguration"
	KeyQueue               cecontainer.Key = "ceQueue"
	KeyQueueMetrics        cecontainer.Key = "ceQueueMetrics"
	KeyWorkers             cecontainer.Key = "ceWorkers"
	KeyTaskProcessors      cecontainer.Key = "ceTaskProcessors"
	KeyProcessingScheduler cecontainer.Key = "ceProcessingScheduler"
	KeyHTTPServer          cecontainer.Key = "ceHttpServer"
	KeyCleaningScheduler   cecontainer.Key = "ceCleaningScheduler"

	KeyDistributedInformation = cluster.KeyDistributedInformation
	KeyClusterMember          = cluster.KeyMember
)
