package engine

import (
	"github.com/GoCodeAlone/cecontainer"
	"github.com/GoCodeAlone/cecontainer/cluster"
	"github.com/GoCodeAlone/cecontainer/props"
)

func (c *Container) plans(p *props.Props, binding cluster.Binding) []cecontainer.LevelPlan {
	return []cecontainer.LevelPlan{
		{ID: cecontainer.LevelPlatform, Modules: cecontainer.Modules(c.platformModule(p))},
		{ID: cecontainer.LevelMigration, Modules: cecontainer.Modules(migrationModule())},
		{ID: cecontainer.LevelServices, Modules: cecontainer.Modules(servicesModule())},
		{ID: cecontainer.LevelTasks, Modules: cecontainer.Modules(
			configurationModule(),
			queueModule(),
			processingModule(),
			httpModule(),
			cleaningModule(),
			binding.Module,
		)},
	}
}
