package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-janitor/janitor/internal/model"
	"github.com/go-janitor/janitor/internal/wisdom"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	return NewTracker(t.TempDir(), false, wisdom.Load("", nil))
}

func TestAddDefinition_RegistersClassHierarchy(t *testing.T) {
	tr := newTestTracker(t)

	base := &model.Entity{Kind: model.EntityClass, Name: "Base", QualifiedName: "Base", FilePath: "a.py"}
	derived := &model.Entity{Kind: model.EntityClass, Name: "Derived", QualifiedName: "Derived", FilePath: "a.py", BaseClasses: []string{"Base"}}
	tr.AddDefinition(base)
	tr.AddDefinition(derived)

	assert.Equal(t, []string{"Base"}, tr.Inheritance.Parents["Derived"])
	assert.Equal(t, []string{"Derived"}, tr.Inheritance.Children["Base"])
}

func TestAddReference_CrossModuleMatchByTargetFile(t *testing.T) {
	tr := newTestTracker(t)
	fn := &model.Entity{Kind: model.EntityFunction, Name: "helper", QualifiedName: "helper", FilePath: "/proj/util.py"}
	tr.AddDefinition(fn)

	tr.AddReference("helper", "/proj/main.py", 10, model.RefCall, "/proj/util.py", "")

	key := model.DefinitionKey("/proj/util.py", "helper")
	require.Len(t, tr.References[key], 1)
	assert.Equal(t, "/proj/main.py", tr.References[key][0].FilePath)
}

func TestAddReference_ClassContextMatchesMethod(t *testing.T) {
	tr := newTestTracker(t)
	method := &model.Entity{Kind: model.EntityMethod, Name: "run", QualifiedName: "Job.run", FilePath: "/proj/job.py", ParentClass: "Job"}
	tr.AddDefinition(method)

	tr.AddReference("run", "/proj/job.py", 5, model.RefCall, "", "Job")

	// One reference from the classContext match itself, one more from the
	// Inheritance Family Shield protecting "run" across Job's hierarchy
	// (here just Job itself, since no base/derived classes are registered).
	key := model.DefinitionKey("/proj/job.py", "Job.run")
	assert.Len(t, tr.References[key], 2)
}

func TestAddReference_UnmatchedFallsBackToPlaceholder(t *testing.T) {
	tr := newTestTracker(t)
	tr.AddReference("nowhere", "/proj/main.py", 1, model.RefName, "", "")
	assert.Len(t, tr.References["unknown::nowhere"], 1)
}

func TestActivateConstructorShield_ProtectsDunderMethods(t *testing.T) {
	tr := newTestTracker(t)
	class := &model.Entity{Kind: model.EntityClass, Name: "Widget", QualifiedName: "Widget", FilePath: "/proj/w.py"}
	initMethod := &model.Entity{Kind: model.EntityMethod, Name: "__init__", QualifiedName: "Widget.__init__", FilePath: "/proj/w.py", ParentClass: "Widget"}
	tr.AddDefinition(class)
	tr.AddDefinition(initMethod)

	tr.AddReference("Widget", "/proj/main.py", 3, model.RefCall, "/proj/w.py", "")

	key := model.DefinitionKey("/proj/w.py", "Widget.__init__")
	assert.Len(t, tr.References[key], 1)
}

func TestProtectMethodFamily_BidirectionalTraversal(t *testing.T) {
	tr := newTestTracker(t)
	base := &model.Entity{Kind: model.EntityClass, Name: "Animal", QualifiedName: "Animal"}
	dog := &model.Entity{Kind: model.EntityClass, Name: "Dog", QualifiedName: "Dog", BaseClasses: []string{"Animal"}}
	tr.AddDefinition(base)
	tr.AddDefinition(dog)

	baseSpeak := &model.Entity{Kind: model.EntityMethod, Name: "speak", QualifiedName: "Animal.speak", FilePath: "/proj/animal.py", ParentClass: "Animal"}
	dogSpeak := &model.Entity{Kind: model.EntityMethod, Name: "speak", QualifiedName: "Dog.speak", FilePath: "/proj/dog.py", ParentClass: "Dog"}
	tr.AddDefinition(baseSpeak)
	tr.AddDefinition(dogSpeak)

	tr.protectMethodFamily("Animal", "speak", "/proj/main.py", 1)

	assert.Len(t, tr.References[model.DefinitionKey("/proj/animal.py", "Animal.speak")], 1)
	assert.Len(t, tr.References[model.DefinitionKey("/proj/dog.py", "Dog.speak")], 1)
}

func TestApplyFrameworkLifecycleProtection_UnittestSetUp(t *testing.T) {
	tr := newTestTracker(t)
	class := &model.Entity{Kind: model.EntityClass, Name: "MyTest", QualifiedName: "MyTest", BaseClasses: []string{"unittest.TestCase"}}
	setUp := &model.Entity{Kind: model.EntityMethod, Name: "setUp", QualifiedName: "MyTest.setUp", FilePath: "/proj/t.py", ParentClass: "MyTest"}
	tr.AddDefinition(class)
	tr.AddDefinition(setUp)

	tr.ApplyFrameworkLifecycleProtection()

	assert.Len(t, tr.References[model.DefinitionKey("/proj/t.py", "MyTest.setUp")], 1)
}

func TestMarkImmortal_ProtectsByName(t *testing.T) {
	tr := newTestTracker(t)
	fn := &model.Entity{Kind: model.EntityFunction, Name: "on_save", QualifiedName: "on_save", FilePath: "/proj/hooks.py"}
	tr.AddDefinition(fn)

	tr.MarkImmortal("on_save", "signal handler")

	reason, ok := tr.heuristicImmortal[model.DefinitionKey("/proj/hooks.py", "on_save")]
	require.True(t, ok)
	assert.Equal(t, "signal handler", reason)
}

func TestTrackPackageExport_RecordsKeyWhenDefinitionExists(t *testing.T) {
	tr := newTestTracker(t)
	fn := &model.Entity{Kind: model.EntityFunction, Name: "public_api", QualifiedName: "public_api", FilePath: "/proj/mod.py"}
	tr.AddDefinition(fn)

	tr.TrackPackageExport("public_api", "/proj/__init__.py", "/proj/mod.py")

	assert.True(t, tr.PackageExports.Contains(model.DefinitionKey("/proj/mod.py", "public_api")))
}
